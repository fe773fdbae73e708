// Package corpus assembles crawled documentation into an on-disk corpus: a
// directory of front-matter markdown pages indexed by manifest.json.
package corpus

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillforge/pkg/escalate"
	"github.com/jingkaihe/skillforge/pkg/firecrawl"
	"github.com/jingkaihe/skillforge/pkg/forgeerr"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/sources"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
)

// Crawler crawls a site. firecrawl.Client implements it.
type Crawler interface {
	Crawl(ctx context.Context, url string, opts firecrawl.CrawlOptions) (*firecrawl.CrawlResult, error)
}

// BuildOptions controls Build.
type BuildOptions struct {
	// Limit caps the pages of each domain crawl.
	Limit int
	// Stealth requests the stealth proxy up front, which disables escalation.
	Stealth bool
	// Dir overrides the generated corpus directory.
	Dir string
}

// Builder builds corpora under a root directory.
type Builder struct {
	crawler Crawler
	root    string
	now     func() time.Time
}

// NewBuilder returns a Builder writing corpora under root.
func NewBuilder(crawler Crawler, root string) *Builder {
	return &Builder{crawler: crawler, root: root, now: time.Now}
}

// DirName returns the directory name for a corpus built for task at t.
func DirName(task string, t time.Time) string {
	return "corpus_" + slugify(task, 50) + "_" + t.Format("20060102_150405")
}

// Build crawls srcs into a new corpus directory and returns its path.
func (b *Builder) Build(ctx context.Context, task string, srcs []sources.Source, opts BuildOptions) (string, error) {
	var dir string
	err := telemetry.WithSpan(ctx, "corpus.build", func(ctx context.Context) error {
		var err error
		dir, err = b.build(ctx, task, srcs, opts)
		return err
	}, attribute.String("task", task), attribute.Int("sources", len(srcs)))
	return dir, err
}

func (b *Builder) build(ctx context.Context, task string, srcs []sources.Source, opts BuildOptions) (string, error) {
	now := b.now()
	dir := opts.Dir
	if dir == "" {
		dir = filepath.Join(b.root, DirName(task, now))
	}
	if _, err := os.Stat(filepath.Join(dir, ManifestFile)); err == nil {
		return "", forgeerr.New(forgeerr.KindCorpusBuild, "corpus already exists at %s", dir)
	}

	ordered := append([]sources.Source(nil), srcs...)
	sources.SortByPriority(ordered)

	var (
		candidates []pageCandidate
		crawlErrs  *multierror.Error
		seedURL    string
	)
	for _, s := range ordered {
		if s.Origin == sources.OriginSeed {
			seedURL = s.URL
			break
		}
	}

	for _, plan := range planCrawls(ordered) {
		pages, err := b.crawlDomain(ctx, plan, opts)
		if err != nil {
			crawlErrs = multierror.Append(crawlErrs, errors.Wrapf(err, "crawl of %s failed", plan.domain))
			continue
		}
		candidates = append(candidates, pages...)
	}

	for _, s := range ordered {
		if s.Origin == sources.OriginSearched && s.HasContent() {
			candidates = append(candidates, pageCandidate{src: s, markdown: s.Content})
		}
	}

	candidates = dedupeCandidates(candidates)
	if len(candidates) == 0 {
		if err := crawlErrs.ErrorOrNil(); err != nil {
			return "", forgeerr.Wrap(forgeerr.KindCorpusBuild, err, "no pages retrieved for corpus")
		}
		return "", forgeerr.New(forgeerr.KindCorpusBuild, "no pages retrieved for corpus")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", forgeerr.Wrap(forgeerr.KindCorpusBuild, err, "failed to create corpus directory")
	}

	m := &Manifest{Task: task, SeedURL: seedURL, CreatedAt: now.UTC(), UpdatedAt: now.UTC()}
	for i, c := range candidates {
		info, err := writePage(dir, i+1, c.src, c.markdown, now)
		if err != nil {
			return "", forgeerr.Wrap(forgeerr.KindCorpusBuild, err, "failed to write corpus")
		}
		m.Pages = append(m.Pages, info)
	}
	if err := writeManifest(dir, m); err != nil {
		return "", forgeerr.Wrap(forgeerr.KindCorpusBuild, err, "failed to write corpus")
	}

	logger.G(ctx).
		WithField("dir", dir).
		WithField("pages", m.TotalPages).
		WithField("tokens", m.TotalTokensEstimate).
		Info("corpus built")
	return dir, nil
}

type pageCandidate struct {
	src      sources.Source
	markdown string
}

func dedupeCandidates(in []pageCandidate) []pageCandidate {
	seen := map[string]bool{}
	out := in[:0]
	for _, c := range in {
		key := sources.NormalizeURL(c.src.URL)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// crawlDomain crawls one domain, retrying once in stealth mode when the
// normal crawl fails or comes back with at most one page.
func (b *Builder) crawlDomain(ctx context.Context, plan *domainCrawl, opts BuildOptions) ([]pageCandidate, error) {
	log := logger.G(ctx).WithField("domain", plan.domain).WithField("start_url", plan.startURL)

	op := func(ctx context.Context, escalated bool) (*firecrawl.CrawlResult, error) {
		var res *firecrawl.CrawlResult
		err := telemetry.WithSpan(ctx, "corpus.crawl_domain", func(ctx context.Context) error {
			var err error
			res, err = b.crawler.Crawl(ctx, plan.startURL, firecrawl.CrawlOptions{
				Limit:        opts.Limit,
				IncludePaths: plan.includePaths,
				Stealth:      opts.Stealth || escalated,
			})
			return err
		}, attribute.String("domain", plan.domain), attribute.Bool("stealth", opts.Stealth || escalated))
		return res, err
	}

	res, outcome, err := escalate.Do(ctx, op, escalate.Policy[*firecrawl.CrawlResult]{
		Disabled:        opts.Stealth,
		NeedsEscalation: func(r *firecrawl.CrawlResult) bool { return pageCount(r) <= 1 },
		Better: func(candidate, current *firecrawl.CrawlResult) bool {
			return pageCount(candidate) > pageCount(current)
		},
		OnEscalate: func(reason error) {
			log.WithError(reason).Info("crawl came back thin, retrying with stealth proxy")
		},
	})
	if err != nil {
		return nil, err
	}

	pages := make([]pageCandidate, 0, pageCount(res))
	seedKey := sources.NormalizeURL(plan.seedURL)
	for _, p := range res.Pages {
		if strings.TrimSpace(p.Markdown) == "" {
			log.WithField("url", p.URL).Debug("skipping blank crawled page")
			continue
		}
		origin := sources.OriginMapped
		if plan.seedURL != "" && sources.NormalizeURL(p.URL) == seedKey {
			origin = sources.OriginSeed
		}
		src := sources.Source{
			URL:      p.URL,
			Title:    p.Title,
			Origin:   origin,
			Tier:     plan.tier,
			Priority: sources.Priority(plan.tier, origin),
		}
		pages = append(pages, pageCandidate{src: src, markdown: p.Markdown})
	}

	log.WithField("pages", len(pages)).WithField("stealth", outcome.Escalated || opts.Stealth).Info("domain crawled")
	return pages, nil
}

func pageCount(r *firecrawl.CrawlResult) int {
	if r == nil {
		return 0
	}
	return len(r.Pages)
}
