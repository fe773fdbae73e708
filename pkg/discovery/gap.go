package discovery

import (
	"context"
	"strings"

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

const maxGapQueryWords = 6

var gapNoiseWords = map[string]bool{
	"documentation": true, "docs": true, "tutorial": true, "example": true,
	"examples": true, "guide": true, "how": true, "to": true, "the": true,
	"a": true, "an": true, "for": true, "with": true, "using": true,
	"in": true, "of": true,
}

// SimplifyQuery strips noise words from a gap query and caps it at six
// words. A query made only of noise is returned trimmed.
func SimplifyQuery(query string) string {
	var kept []string
	for _, w := range strings.Fields(query) {
		if gapNoiseWords[strings.ToLower(strings.Trim(w, ".,:;!?\"'()"))] {
			continue
		}
		kept = append(kept, w)
		if len(kept) == maxGapQueryWords {
			break
		}
	}
	if len(kept) == 0 {
		return strings.TrimSpace(query)
	}
	return strings.Join(kept, " ")
}

type docRoot struct {
	product string
	url     string
}

// knownDocRoots is checked in query-word order when search finds nothing.
var knownDocRoots = []docRoot{
	{"firecrawl", "https://docs.firecrawl.dev"},
	{"cobra", "https://cobra.dev"},
	{"viper", "https://github.com/spf13/viper"},
	{"bubbletea", "https://github.com/charmbracelet/bubbletea"},
	{"kubernetes", "https://kubernetes.io/docs/"},
	{"k8s", "https://kubernetes.io/docs/"},
	{"kubectl", "https://kubernetes.io/docs/reference/kubectl/"},
	{"helm", "https://helm.sh/docs/"},
	{"docker", "https://docs.docker.com"},
	{"terraform", "https://developer.hashicorp.com/terraform/docs"},
	{"golang", "https://go.dev/doc/"},
	{"rust", "https://doc.rust-lang.org/book/"},
	{"python", "https://docs.python.org/3/"},
	{"django", "https://docs.djangoproject.com/en/stable/"},
	{"flask", "https://flask.palletsprojects.com"},
	{"fastapi", "https://fastapi.tiangolo.com"},
	{"react", "https://react.dev/learn"},
	{"nextjs", "https://nextjs.org/docs"},
	{"next.js", "https://nextjs.org/docs"},
	{"playwright", "https://playwright.dev/docs/intro"},
	{"postgres", "https://www.postgresql.org/docs/current/"},
	{"postgresql", "https://www.postgresql.org/docs/current/"},
	{"sqlite", "https://www.sqlite.org/docs.html"},
	{"redis", "https://redis.io/docs/"},
	{"anthropic", "https://docs.anthropic.com"},
	{"claude", "https://docs.anthropic.com"},
	{"openai", "https://platform.openai.com/docs"},
	{"stripe", "https://docs.stripe.com"},
	{"gin", "https://gin-gonic.com/docs/"},
}

// DocRootFor returns the documentation root of the first product named in
// query, if any.
func DocRootFor(query string) (string, bool) {
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, ".,:;!?\"'()")
		for _, root := range knownDocRoots {
			if root.product == w {
				return root.url, true
			}
		}
	}
	return "", false
}

// SearchForGap finds sources that fill a knowledge gap. It searches the
// simplified query and, when that yields nothing, crawls a known
// documentation root for the product the query names. Results carry content
// and are ordered by priority.
func (d *Discoverer) SearchForGap(ctx context.Context, query string) ([]sources.Source, error) {
	var result []sources.Source
	err := telemetry.WithSpan(ctx, "discovery.search_for_gap", func(ctx context.Context) error {
		var err error
		result, err = d.searchForGap(ctx, query)
		telemetry.SetAttributes(ctx, attribute.Int("sources", len(result)))
		return err
	}, attribute.String("query", query))
	return result, err
}

func (d *Discoverer) searchForGap(ctx context.Context, query string) ([]sources.Source, error) {
	log := logger.G(ctx).WithField("gap_query", query)
	simplified := SimplifyQuery(query)

	op := func(ctx context.Context, escalated bool) ([]sources.Source, error) {
		if escalated {
			return d.crawlKnownRoot(ctx, query)
		}
		return d.searchGap(ctx, simplified)
	}

	found, outcome, err := escalate.Do(ctx, op, escalate.Policy[[]sources.Source]{
		NeedsEscalation: func(s []sources.Source) bool { return len(s) == 0 },
		Better: func(candidate, current []sources.Source) bool {
			return len(candidate) > len(current)
		},
		OnEscalate: func(reason error) {
			log.WithError(reason).WithField("simplified_query", simplified).Info("gap search found nothing, trying known documentation root")
		},
	})
	if err != nil {
		if outcome.FirstErr != nil {
			err = multierror.Append(outcome.FirstErr, err)
		}
		return nil, forgeerr.Wrap(forgeerr.KindSearch, err, "gap search failed for %q", query)
	}
	if len(found) == 0 {
		return nil, forgeerr.New(forgeerr.KindSearch, "gap search found no sources for %q", query)
	}

	sources.SortByPriority(found)
	log.WithField("sources", len(found)).WithField("fallback", outcome.Escalated).Info("gap search finished")
	return found, nil
}

func (d *Discoverer) searchGap(ctx context.Context, query string) ([]sources.Source, error) {
	res, err := d.svc.Search(ctx, query, firecrawl.SearchOptions{Limit: d.cfg.SearchLimit, Scrape: true})
	if err != nil {
		return nil, err
	}
	out := make([]sources.Source, 0, len(res.Results))
	for _, item := range res.Results {
		out = append(out, sources.New(item.URL, item.Title, sources.OriginSearched, item.Markdown))
	}
	return out, nil
}

func (d *Discoverer) crawlKnownRoot(ctx context.Context, query string) ([]sources.Source, error) {
	root, ok := DocRootFor(query)
	if !ok {
		return nil, errors.Errorf("no known documentation root for %q", query)
	}

	res, err := d.svc.Crawl(ctx, root, firecrawl.CrawlOptions{Limit: gapCrawlLimit})
	if err != nil {
		return nil, err
	}
	out := make([]sources.Source, 0, len(res.Pages))
	for _, page := range res.Pages {
		out = append(out, sources.New(page.URL, page.Title, sources.OriginSearched, page.Markdown))
	}
	return out, nil
}
