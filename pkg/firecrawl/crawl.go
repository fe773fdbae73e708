package firecrawl

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/jingkaihe/skillforge/pkg/logger"
)

type crawlRequest struct {
	URL           string         `json:"url"`
	Limit         int            `json:"limit,omitempty"`
	IncludePaths  []string       `json:"includePaths,omitempty"`
	ExcludePaths  []string       `json:"excludePaths,omitempty"`
	ScrapeOptions map[string]any `json:"scrapeOptions"`
}

type crawlStartResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
	URL     string `json:"url"`
}

type crawlStatusResponse struct {
	Status    string     `json:"status"`
	Total     int        `json:"total"`
	Completed int        `json:"completed"`
	Next      string     `json:"next"`
	Data      []document `json:"data"`
}

// Crawl crawls url and its subpages and waits for the job to finish.
func (c *Client) Crawl(ctx context.Context, url string, opts CrawlOptions) (*CrawlResult, error) {
	req := crawlRequest{
		URL:           url,
		Limit:         opts.Limit,
		IncludePaths:  opts.IncludePaths,
		ExcludePaths:  opts.ExcludePaths,
		ScrapeOptions: scrapeOptions([]string{"markdown", "html"}, opts.Stealth),
	}

	var started crawlStartResponse
	if err := c.do(ctx, http.MethodPost, "/v1/crawl", req, &started); err != nil {
		return nil, errors.Wrapf(err, "failed to crawl %s", url)
	}
	if started.ID == "" {
		return nil, errors.Errorf("failed to crawl %s: service returned no job id", url)
	}

	log := logger.G(ctx).WithField("url", url).WithField("job", started.ID).WithField("stealth", opts.Stealth)
	log.Debug("crawl started")

	docs, err := c.waitForCrawl(ctx, started.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to crawl %s", url)
	}

	result := &CrawlResult{}
	for _, doc := range docs {
		meta := c.metadata(ctx, doc.RawMetadata)
		pageURL := firstNonEmpty(meta.URL, meta.SourceURL, doc.URL, url)

		markdown := c.markdown(ctx, doc)
		if markdown == "" {
			result.FailedURLs = append(result.FailedURLs, pageURL)
			continue
		}
		result.Pages = append(result.Pages, Page{
			URL:      pageURL,
			Title:    firstNonEmpty(meta.Title, doc.Title),
			Markdown: markdown,
			Metadata: meta,
		})
	}

	if len(result.Pages) == 0 {
		return nil, errors.Wrapf(ErrNoResults, "crawl returned no pages for %s", url)
	}

	log.WithField("pages", len(result.Pages)).WithField("failed", len(result.FailedURLs)).Info("crawl finished")
	return result, nil
}

// waitForCrawl polls the job until it completes, then follows the paginated
// result links.
func (c *Client) waitForCrawl(ctx context.Context, id string) ([]document, error) {
	path := "/v1/crawl/" + id

	var status crawlStatusResponse
	for {
		status = crawlStatusResponse{}
		if err := c.do(ctx, http.MethodGet, path, nil, &status); err != nil {
			return nil, err
		}

		switch status.Status {
		case "completed":
		case "failed", "cancelled":
			return nil, errors.Errorf("crawl job %s %s", id, status.Status)
		default:
			logger.G(ctx).WithField("job", id).
				WithField("completed", status.Completed).
				WithField("total", status.Total).
				Debug("waiting for crawl")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.pollInterval):
			}
			continue
		}
		break
	}

	docs := status.Data
	for next := status.Next; next != ""; {
		var page crawlStatusResponse
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, err
		}
		docs = append(docs, page.Data...)
		next = page.Next
	}
	return docs, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
