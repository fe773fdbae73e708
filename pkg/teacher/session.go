// Package teacher runs the teacher session: a bounded loop that asks a model
// to perform a task from a documentation corpus, fills the knowledge gaps it
// reports, and accepts a completion only after it has been validated and
// confirmed by a second-pass analysis.
package teacher

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/corpus"
	"github.com/jingkaihe/skillforge/pkg/forgeerr"
	"github.com/jingkaihe/skillforge/pkg/llm"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/shadow"
	"github.com/jingkaihe/skillforge/pkg/sources"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
	llmtypes "github.com/jingkaihe/skillforge/pkg/types/llm"
	"github.com/jingkaihe/skillforge/pkg/usage"
)

// PreviewLength bounds the output preview carried by terminal errors.
const PreviewLength = 500

// Defaults applied when the configuration leaves a bound unset.
const (
	DefaultMaxAttempts      = 5
	DefaultAmbiguityRetries = 1
)

// GapSearcher finds sources for a knowledge gap.
type GapSearcher interface {
	SearchForGap(ctx context.Context, query string) ([]sources.Source, error)
}

// Corpus is the documentation the model is taught from.
type Corpus interface {
	// Context returns the whole corpus as prompt context.
	Context(ctx context.Context) (string, error)
	// Enrich appends sources and returns how many pages were added.
	Enrich(ctx context.Context, srcs []sources.Source) (int, error)
}

// Validator checks a claimed solution before it is trusted.
type Validator interface {
	Validate(ctx context.Context, task, output string) shadow.Result
}

type dirCorpus string

// DirCorpus returns a Corpus backed by a corpus directory on disk.
func DirCorpus(dir string) Corpus {
	return dirCorpus(dir)
}

func (d dirCorpus) Context(_ context.Context) (string, error) {
	return corpus.LoadAsContext(string(d))
}

func (d dirCorpus) Enrich(ctx context.Context, srcs []sources.Source) (int, error) {
	return corpus.Enrich(ctx, string(d), srcs)
}

// AttemptRecord is one entry of the session trace.
type AttemptRecord struct {
	AttemptNumber int    `json:"attempt_number"`
	Input         string `json:"input"`
	Output        string `json:"output"`
	// Marker is the tool the model called.
	Marker string `json:"marker"`
	// Strict is set when the attempt ran with the escalated prompt.
	Strict bool `json:"strict,omitempty"`

	Validation     *shadow.Result `json:"validation,omitempty"`
	AnalysisOutput string         `json:"analysis_output,omitempty"`
	Verdict        string         `json:"verdict,omitempty"`

	GapQuery        string `json:"gap_query,omitempty"`
	GapSourcesAdded int    `json:"gap_sources_added,omitempty"`
	GapSearchFailed bool   `json:"gap_search_failed,omitempty"`
}

// Result is the outcome of one session.
type Result struct {
	SessionID   string          `json:"session_id"`
	Task        string          `json:"task"`
	CorpusPath  string          `json:"corpus_path,omitempty"`
	Model       string          `json:"model"`
	Success     bool            `json:"success"`
	Trace       []AttemptRecord `json:"trace"`
	FinalOutput string          `json:"final_output"`
	Summary     string          `json:"summary,omitempty"`
	Attempts    int             `json:"attempts"`
	GapsFilled  []string        `json:"gaps_filled"`
	Usage       llmtypes.Usage  `json:"usage"`
	StartedAt   time.Time       `json:"started_at"`
	FinishedAt  time.Time       `json:"finished_at"`
}

// Option configures a Session.
type Option func(*Session)

// WithValidator replaces the default static-only shadow validator.
func WithValidator(v Validator) Option {
	return func(s *Session) { s.validator = v }
}

// WithAttemptHook registers fn to be called after every attempt.
func WithAttemptHook(fn func(AttemptRecord)) Option {
	return func(s *Session) { s.onAttempt = fn }
}

// WithRenderer overrides the prompt templates.
func WithRenderer(r *Renderer) Option {
	return func(s *Session) { s.renderer = r }
}

// Session drives the attempt loop for one corpus.
type Session struct {
	client    llmtypes.Client
	searcher  GapSearcher
	corpus    Corpus
	validator Validator
	renderer  *Renderer
	onAttempt func(AttemptRecord)

	maxAttempts      int
	ambiguityRetries int
}

// NewSession creates a session.
func NewSession(client llmtypes.Client, searcher GapSearcher, c Corpus, cfg config.TeacherConfig, opts ...Option) *Session {
	s := &Session{
		client:           client,
		searcher:         searcher,
		corpus:           c,
		validator:        shadow.New(nil),
		renderer:         defaultRenderer,
		maxAttempts:      cfg.MaxAttempts,
		ambiguityRetries: cfg.AmbiguityRetries,
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.ambiguityRetries < 0 {
		s.ambiguityRetries = DefaultAmbiguityRetries
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run holds the mutable state of one Run.
type run struct {
	task        string
	result      *Result
	strict      bool
	retriesLeft int
	lastOutput  string
}

// Run teaches the model task. The result is returned alongside a terminal
// error so the partial trace can still be persisted.
func (s *Session) Run(ctx context.Context, task string) (*Result, error) {
	r := &run{
		task: task,
		result: &Result{
			SessionID:  uuid.New().String(),
			Task:       task,
			Model:      s.client.Model(),
			GapsFilled: []string{},
			StartedAt:  time.Now(),
		},
		retriesLeft: s.ambiguityRetries,
	}

	ctx = logger.WithField(ctx, "session_id", r.result.SessionID)
	err := telemetry.WithSpan(ctx, "teacher.session", func(ctx context.Context) error {
		err := s.loop(ctx, r)
		telemetry.SetAttributes(ctx,
			attribute.Bool("success", r.result.Success),
			attribute.Int("attempts", r.result.Attempts),
			attribute.Int("gaps_filled", len(r.result.GapsFilled)),
		)
		return err
	}, attribute.String("session_id", r.result.SessionID), attribute.String("task", task))

	r.result.Usage = s.client.Usage()
	r.result.FinishedAt = time.Now()
	usage.LogSessionUsage(ctx, r.result.Usage, r.result.Model, r.result.StartedAt)
	return r.result, err
}

func (s *Session) loop(ctx context.Context, r *run) error {
	log := logger.G(ctx)

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		r.result.Attempts = attempt
		var done bool
		err := telemetry.WithSpan(ctx, "teacher.attempt", func(ctx context.Context) error {
			var err error
			done, err = s.attempt(ctx, r, attempt)
			return err
		}, attribute.Int("attempt", attempt))
		if err != nil {
			return err
		}
		if done {
			log.WithField("attempts", attempt).WithField("gaps_filled", len(r.result.GapsFilled)).Info("teacher session completed")
			return nil
		}
	}

	return &forgeerr.Error{
		Kind:    forgeerr.KindTeacherSession,
		Message: "max attempts reached without success",
		Attempt: s.maxAttempts,
		Preview: forgeerr.Preview(r.lastOutput, PreviewLength),
	}
}

// attempt runs one attempt and appends its record to the trace. It reports
// whether the session completed.
func (s *Session) attempt(ctx context.Context, r *run, attempt int) (bool, error) {
	log := logger.G(ctx).WithField("attempt", attempt)
	strict := r.strict
	r.strict = false

	corpusText, err := s.corpus.Context(ctx)
	if err != nil {
		return false, &forgeerr.Error{Kind: forgeerr.KindCorpusLoad, Message: "failed to load corpus", Attempt: attempt, Err: err}
	}

	pctx := newPromptContext(r.task)
	pctx.Corpus = corpusText
	pctx.Strict = strict
	system, err := s.renderer.Render(SystemTemplate, pctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to render system prompt")
	}
	prompt, err := s.renderer.Render(AttemptTemplate, pctx)
	if err != nil {
		return false, errors.Wrap(err, "failed to render attempt prompt")
	}

	log.WithField("strict", strict).Info("starting teacher attempt")
	resp, err := s.client.Decide(ctx, llmtypes.DecideRequest{
		System:    system,
		Prompt:    prompt,
		Tools:     llm.TeacherTools(),
		ForceTool: true,
	})
	if err != nil {
		return false, &forgeerr.Error{Kind: forgeerr.KindService, Message: "teacher model call failed", Attempt: attempt, Err: err}
	}

	out := DecodeResponse(resp)
	rec := AttemptRecord{
		AttemptNumber: attempt,
		Input:         prompt,
		Output:        out.Raw,
		Marker:        out.Marker,
		Strict:        strict,
	}
	r.lastOutput = out.Raw
	defer func() {
		r.result.Trace = append(r.result.Trace, rec)
		if s.onAttempt != nil {
			s.onAttempt(rec)
		}
	}()

	var gapQuery string
	switch out.Kind {
	case OutcomeGap:
		log.WithField("gap_query", out.GapQuery).WithField("reason", out.Reason).Info("model requested documentation")
		gapQuery = out.GapQuery

	case OutcomeComplete:
		r.lastOutput = out.Solution
		verdict, query, err := s.confirm(ctx, r, attempt, out, &rec)
		if err != nil {
			return false, err
		}
		switch verdict.Kind {
		case OutcomeComplete:
			r.result.Success = true
			r.result.FinalOutput = out.Solution
			r.result.Summary = out.Summary
			return true, nil
		case OutcomeAmbiguous:
			if r.retriesLeft > 0 && attempt < s.maxAttempts {
				r.retriesLeft--
				r.strict = true
				log.Info("analysis verdict ambiguous, retrying with a stricter prompt")
				return false, nil
			}
			return false, &forgeerr.Error{
				Kind:    forgeerr.KindAnalysis,
				Message: "completion verdict remained ambiguous",
				Attempt: attempt,
				Preview: forgeerr.Preview(rec.AnalysisOutput, PreviewLength),
			}
		}
		gapQuery = query

	default:
		return false, &forgeerr.Error{
			Kind:    forgeerr.KindAnalysis,
			Message: "unparseable model answer: " + out.Detail,
			Attempt: attempt,
			Preview: forgeerr.Preview(out.Raw, PreviewLength),
		}
	}

	return false, s.fillGap(ctx, r, gapQuery, &rec)
}

// confirm validates a completion claim and runs the second-pass analysis on
// it. A validator rejection is reported as a gap with the validator's query.
func (s *Session) confirm(ctx context.Context, r *run, attempt int, out Outcome, rec *AttemptRecord) (Outcome, string, error) {
	log := logger.G(ctx).WithField("attempt", attempt)

	if s.validator != nil {
		v := s.validator.Validate(ctx, r.task, out.Solution)
		rec.Validation = &v
		if !v.Passed {
			log.WithField("errors", v.ErrorSummary).Warn("shadow validation rejected the solution")
			return Outcome{Kind: OutcomeGap, GapQuery: v.SearchQuery}, v.SearchQuery, nil
		}
	}

	pctx := newPromptContext(r.task)
	pctx.Summary = out.Summary
	pctx.Solution = out.Solution
	system, err := s.renderer.Render(AnalysisSystemTemplate, pctx)
	if err != nil {
		return Outcome{}, "", errors.Wrap(err, "failed to render analysis system prompt")
	}
	prompt, err := s.renderer.Render(AnalysisTemplate, pctx)
	if err != nil {
		return Outcome{}, "", errors.Wrap(err, "failed to render analysis prompt")
	}

	text, err := s.client.Complete(ctx, system, prompt)
	if err != nil {
		return Outcome{}, "", &forgeerr.Error{Kind: forgeerr.KindService, Message: "analysis model call failed", Attempt: attempt, Err: err}
	}
	rec.AnalysisOutput = text

	verdict := DecodeVerdict(text)
	rec.Verdict = verdict.Marker
	log.WithField("verdict", verdict.Kind.String()).Info("second-pass analysis finished")
	if verdict.Kind == OutcomeUnparseable {
		return Outcome{}, "", &forgeerr.Error{
			Kind:    forgeerr.KindAnalysis,
			Message: "unparseable analysis verdict: " + verdict.Detail,
			Attempt: attempt,
			Preview: forgeerr.Preview(text, PreviewLength),
		}
	}
	return verdict, verdict.GapQuery, nil
}

// fillGap searches for the gap and enriches the corpus with what it finds. A
// failed search is recorded and the session carries on.
func (s *Session) fillGap(ctx context.Context, r *run, query string, rec *AttemptRecord) error {
	log := logger.G(ctx).WithField("gap_query", query)
	rec.GapQuery = query

	found, err := s.searcher.SearchForGap(ctx, query)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("gap search failed, continuing")
		rec.GapSearchFailed = true
		return nil
	}
	if len(found) == 0 {
		return nil
	}

	added, err := s.corpus.Enrich(ctx, found)
	if err != nil {
		return err
	}
	rec.GapSourcesAdded = added
	r.result.GapsFilled = append(r.result.GapsFilled, query)
	log.WithField("sources_added", added).Info("knowledge gap filled")
	return nil
}
