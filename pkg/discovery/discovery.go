// Package discovery finds documentation sources for a task: from a seed URL,
// from the task text alone, and for knowledge gaps found mid-session.
package discovery

import (
	"context"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/firecrawl"
	"github.com/jingkaihe/skillforge/pkg/forgeerr"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/sources"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
)

// Service is the crawl/search backend discovery runs against.
type Service interface {
	Map(ctx context.Context, url string, limit int) ([]firecrawl.Link, error)
	Search(ctx context.Context, query string, opts firecrawl.SearchOptions) (*firecrawl.SearchResult, error)
	Crawl(ctx context.Context, url string, opts firecrawl.CrawlOptions) (*firecrawl.CrawlResult, error)
}

// gapCrawlLimit bounds the fallback crawl of a known documentation root.
const gapCrawlLimit = 10

// Discoverer runs source discovery.
type Discoverer struct {
	svc Service
	cfg config.DiscoveryConfig
}

// New returns a Discoverer. Zero limits in cfg fall back to the defaults.
func New(svc Service, cfg config.DiscoveryConfig) *Discoverer {
	if cfg.MapLimit <= 0 {
		cfg.MapLimit = 200
	}
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 5
	}
	if cfg.MaxSeeds <= 0 {
		cfg.MaxSeeds = 3
	}
	return &Discoverer{svc: svc, cfg: cfg}
}

var docsPathHints = []string{
	"/docs", "/documentation", "/guide", "/tutorial",
	"/api", "/reference", "/manual", "/learn", "/getting-started",
	"/quickstart", "/handbook", "/wiki",
}

func isDocsURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	path := strings.ToLower(u.Path)
	for _, hint := range docsPathHints {
		if strings.Contains(path, hint) {
			return true
		}
	}
	return false
}

// Discover returns the deduplicated, priority-ordered sources for task
// starting from seedURL. A failed site map is fatal; the supplementary
// search is best effort.
func (d *Discoverer) Discover(ctx context.Context, task, seedURL string) ([]sources.Source, error) {
	var result []sources.Source
	err := telemetry.WithSpan(ctx, "discovery.discover", func(ctx context.Context) error {
		var err error
		result, err = d.discover(ctx, task, seedURL)
		telemetry.SetAttributes(ctx, attribute.Int("sources", len(result)))
		return err
	}, attribute.String("seed_url", seedURL))
	return result, err
}

func (d *Discoverer) discover(ctx context.Context, task, seedURL string) ([]sources.Source, error) {
	log := logger.G(ctx).WithField("seed_url", seedURL)

	found := []sources.Source{sources.NewSeed(seedURL)}

	links, err := d.svc.Map(ctx, seedURL, d.cfg.MapLimit)
	if err != nil {
		return nil, forgeerr.Wrap(forgeerr.KindDiscovery, err, "failed to map seed URL %s", seedURL)
	}

	seedDomain := sources.Domain(seedURL)
	for _, link := range links {
		sameDomain := sources.Domain(link.URL) == seedDomain
		if !sameDomain && !isDocsURL(link.URL) {
			continue
		}
		s := sources.New(link.URL, link.Title, sources.OriginMapped, "")
		if sameDomain {
			s = s.WithTier(sources.Tier1)
		}
		found = append(found, s)
	}

	query := task + " documentation tutorial"
	res, err := d.svc.Search(ctx, query, firecrawl.SearchOptions{Limit: d.cfg.SearchLimit, Scrape: true})
	if err != nil {
		log.WithError(err).WithField("query", query).Warn("supplementary search failed")
	} else {
		for _, item := range res.Results {
			found = append(found, sources.New(item.URL, item.Title, sources.OriginSearched, item.Markdown))
		}
	}

	found = sources.Dedupe(found)
	log.WithField("sources", len(found)).Info("discovered sources")
	return found, nil
}
