package discovery

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/firecrawl"
)

// fakeService answers from canned tables keyed by URL or query.
type fakeService struct {
	maps     map[string][]firecrawl.Link
	mapErr   map[string]error
	searches map[string][]firecrawl.SearchItem
	crawls   map[string][]firecrawl.Page

	mapCalls    []string
	searchCalls []string
	crawlCalls  []string
}

func (f *fakeService) Map(_ context.Context, url string, _ int) ([]firecrawl.Link, error) {
	f.mapCalls = append(f.mapCalls, url)
	if err := f.mapErr[url]; err != nil {
		return nil, err
	}
	links, ok := f.maps[url]
	if !ok || len(links) == 0 {
		return nil, errors.Wrapf(firecrawl.ErrNoResults, "map returned no URLs for %s", url)
	}
	return links, nil
}

func (f *fakeService) Search(_ context.Context, query string, _ firecrawl.SearchOptions) (*firecrawl.SearchResult, error) {
	f.searchCalls = append(f.searchCalls, query)
	items := f.searches[query]
	if len(items) == 0 {
		return nil, errors.Wrapf(firecrawl.ErrNoResults, "search returned no results for %q", query)
	}
	return &firecrawl.SearchResult{Query: query, Results: items}, nil
}

func (f *fakeService) Crawl(_ context.Context, url string, _ firecrawl.CrawlOptions) (*firecrawl.CrawlResult, error) {
	f.crawlCalls = append(f.crawlCalls, url)
	pages := f.crawls[url]
	if len(pages) == 0 {
		return nil, errors.Wrapf(firecrawl.ErrNoResults, "crawl returned no pages for %s", url)
	}
	return &firecrawl.CrawlResult{Pages: pages}, nil
}
