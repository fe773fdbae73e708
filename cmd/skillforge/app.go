package main

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/corpus"
	"github.com/jingkaihe/skillforge/pkg/discovery"
	"github.com/jingkaihe/skillforge/pkg/firecrawl"
	"github.com/jingkaihe/skillforge/pkg/llm"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/shadow"
	"github.com/jingkaihe/skillforge/pkg/sources"
	"github.com/jingkaihe/skillforge/pkg/teacher"
	"github.com/jingkaihe/skillforge/pkg/traces"
	"github.com/jingkaihe/skillforge/pkg/validation"
)

func newDiscoverer(c *config.Config) *discovery.Discoverer {
	return discovery.New(firecrawl.New(c.Firecrawl), c.Discovery)
}

// discoverSources runs discovery from seed, or bootstraps seeds from the task
// when seed is empty.
func discoverSources(ctx context.Context, d *discovery.Discoverer, task, seed string) ([]sources.Source, error) {
	if seed == "" {
		return d.DiscoverWithoutSeed(ctx, task)
	}
	return d.Discover(ctx, task, seed)
}

func newValidator(c *config.Config) (*shadow.Validator, error) {
	if !c.Sandbox.Enabled {
		return shadow.New(nil), nil
	}
	sb, err := shadow.NewSandbox(c.Sandbox)
	if err != nil {
		return nil, errors.Wrap(err, "failed to configure sandbox")
	}
	return shadow.New(sb), nil
}

func printAttempt(rec teacher.AttemptRecord) {
	switch {
	case rec.Verdict == teacher.VerdictComplete:
		presenter.Success(fmt.Sprintf("Attempt %d: solution confirmed", rec.AttemptNumber))
	case rec.Validation != nil && !rec.Validation.Passed:
		presenter.Warning(fmt.Sprintf("Attempt %d: solution rejected: %s", rec.AttemptNumber, rec.Validation.ErrorSummary))
	case rec.GapSearchFailed:
		presenter.Warning(fmt.Sprintf("Attempt %d: gap search failed for %q", rec.AttemptNumber, rec.GapQuery))
	case rec.GapQuery != "":
		presenter.Info(fmt.Sprintf("Attempt %d: knowledge gap %q, %d pages added", rec.AttemptNumber, rec.GapQuery, rec.GapSourcesAdded))
	case rec.Verdict == teacher.VerdictAmbiguous:
		presenter.Warning(fmt.Sprintf("Attempt %d: verdict ambiguous, retrying with a stricter prompt", rec.AttemptNumber))
	}
}

type teachOptions struct {
	output string
}

// teach runs a teacher session over corpusDir, validates the result and
// persists the trace. The trace is saved even when the session fails.
func teach(ctx context.Context, c *config.Config, task, corpusDir string, opts teachOptions) error {
	if err := c.RequireCredentials(); err != nil {
		return err
	}

	client, err := llm.NewClient(ctx, c.LLM)
	if err != nil {
		return err
	}
	validator, err := newValidator(c)
	if err != nil {
		return err
	}
	store, err := traces.New(ctx, c.Traces, c.StateDir)
	if err != nil {
		return errors.Wrap(err, "failed to open trace store")
	}
	defer store.Close()

	presenter.Section("Teaching: " + task)
	session := teacher.NewSession(client, newDiscoverer(c), teacher.DirCorpus(corpusDir), c.Teacher,
		teacher.WithValidator(validator),
		teacher.WithAttemptHook(printAttempt),
	)
	res, sessionErr := session.Run(ctx, task)
	res.CorpusPath = corpusDir

	var report *validation.Report
	if sessionErr == nil {
		r := validation.New(c.Validation).Validate(ctx, res)
		report = &r
		for _, w := range r.Warnings {
			presenter.Warning(w)
		}
	}

	if err := store.Save(ctx, traces.NewRecord(res, sessionErr, report)); err != nil {
		logger.G(ctx).WithError(err).WithField("session_id", res.SessionID).Error("failed to save session trace")
	}

	stats := &presenter.SessionStats{
		Attempts:     res.Attempts,
		GapsFilled:   res.GapsFilled,
		InputTokens:  res.Usage.InputTokens,
		OutputTokens: res.Usage.OutputTokens,
	}
	if m, err := corpus.ReadManifest(corpusDir); err == nil {
		stats.CorpusPages = m.TotalPages
	}
	presenter.Separator()
	presenter.Stats(stats)
	presenter.Info("Session: " + res.SessionID)

	if sessionErr != nil {
		return sessionErr
	}
	if err := report.Err(); err != nil {
		return err
	}

	if opts.output != "" {
		if err := os.WriteFile(opts.output, []byte(res.FinalOutput+"\n"), 0o644); err != nil {
			return errors.Wrap(err, "failed to write solution")
		}
		presenter.Success("Solution written to " + opts.output)
		return nil
	}
	presenter.Separator()
	fmt.Println(res.FinalOutput)
	return nil
}
