package firecrawl

import (
	"context"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/logger"
)

type searchRequest struct {
	Query         string         `json:"query"`
	Limit         int            `json:"limit,omitempty"`
	Categories    []string       `json:"categories,omitempty"`
	ScrapeOptions map[string]any `json:"scrapeOptions,omitempty"`
}

type searchResponse struct {
	Success bool       `json:"success"`
	Data    []document `json:"data"`
}

// Search runs a web search, optionally scraping each hit to markdown.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	req := searchRequest{
		Query:      query,
		Limit:      opts.Limit,
		Categories: opts.Categories,
	}
	if opts.Scrape {
		req.ScrapeOptions = scrapeOptions([]string{"markdown"}, opts.Stealth)
	}

	var resp searchResponse
	if err := c.do(ctx, http.MethodPost, "/v1/search", req, &resp); err != nil {
		return nil, errors.Wrapf(err, "search failed for %q", query)
	}

	result := &SearchResult{Query: query}
	for _, doc := range resp.Data {
		meta := c.metadata(ctx, doc.RawMetadata)
		url := firstNonEmpty(doc.URL, meta.URL, meta.SourceURL)
		if url == "" {
			continue
		}
		result.Results = append(result.Results, SearchItem{
			URL:         url,
			Title:       firstNonEmpty(doc.Title, meta.Title),
			Description: firstNonEmpty(doc.Description, meta.Description),
			Markdown:    c.markdown(ctx, doc),
		})
	}

	if len(result.Results) == 0 {
		return nil, errors.Wrapf(ErrNoResults, "search returned no results for %q", query)
	}

	logger.G(ctx).WithField("query", query).WithField("results", len(result.Results)).Debug("search finished")
	return result, nil
}
