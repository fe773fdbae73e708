package firecrawl

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNoResults is returned when a call succeeds but yields no usable items.
var ErrNoResults = errors.New("no results")

// Link is one URL discovered by Map.
type Link struct {
	URL         string `json:"url"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
}

// Metadata is the subset of page metadata skillforge uses.
type Metadata struct {
	Title       string `mapstructure:"title"`
	Description string `mapstructure:"description"`
	Language    string `mapstructure:"language"`
	SourceURL   string `mapstructure:"sourceURL"`
	URL         string `mapstructure:"url"`
	StatusCode  int    `mapstructure:"statusCode"`
}

// Page is one crawled document.
type Page struct {
	URL      string
	Title    string
	Markdown string
	Metadata Metadata
}

// CrawlOptions controls a crawl.
type CrawlOptions struct {
	Limit int
	// IncludePaths are regexes matched against URL paths.
	IncludePaths []string
	ExcludePaths []string
	// Stealth routes requests through the service's stealth proxy.
	Stealth bool
}

// CrawlResult is the outcome of a completed crawl.
type CrawlResult struct {
	Pages []Page
	// FailedURLs lists documents that came back without content.
	FailedURLs []string
}

// SearchOptions controls a search.
type SearchOptions struct {
	Limit int
	// Scrape asks the service to return page markdown with each result.
	Scrape     bool
	Stealth    bool
	Categories []string
}

// SearchItem is one search hit.
type SearchItem struct {
	URL         string
	Title       string
	Description string
	Markdown    string
}

// SearchResult is the outcome of a search.
type SearchResult struct {
	Query   string
	Results []SearchItem
}

// APIError is a non-2xx response from the service.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("firecrawl API error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("firecrawl API error: status %d: %s", e.StatusCode, e.Message)
}

// Transient reports whether retrying the request may succeed.
func (e *APIError) Transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
