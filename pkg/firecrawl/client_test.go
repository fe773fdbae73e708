package firecrawl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jingkaihe/skillforge/pkg/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(config.FirecrawlConfig{
		APIKey:            "fc-test",
		BaseURL:           srv.URL,
		RequestsPerSecond: 1000,
		Burst:             10,
		Timeout:           5 * time.Second,
		PollInterval:      time.Millisecond,
		Retry: config.RetryConfig{
			Attempts:     3,
			InitialDelay: 1,
			MaxDelay:     5,
			BackoffType:  "fixed",
		},
	})
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestMap(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/map", r.URL.Path)
		assert.Equal(t, "Bearer fc-test", r.Header.Get("Authorization"))
		assert.True(t, strings.HasPrefix(r.Header.Get("User-Agent"), "skillforge/"))

		var req mapRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "https://docs.example.com/", req.URL)
		assert.Equal(t, 200, req.Limit)

		writeJSON(t, w, map[string]any{
			"success": true,
			"links": []any{
				"https://docs.example.com/docs/install",
				map[string]any{"url": "https://docs.example.com/docs/config", "title": "Config"},
				"",
			},
		})
	}))

	links, err := client.Map(context.Background(), "https://docs.example.com/", 200)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.Equal(t, "https://docs.example.com/docs/install", links[0].URL)
	assert.Equal(t, "Config", links[1].Title)
}

func TestMapNoResults(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"success": true, "links": []any{}})
	}))

	_, err := client.Map(context.Background(), "https://empty.example.com", 10)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoResults)
}

func TestRetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			writeJSON(t, w, map[string]any{"error": "slow down"})
			return
		}
		writeJSON(t, w, map[string]any{"success": true, "links": []string{"https://a.example.com/docs"}})
	}))

	links, err := client.Map(context.Background(), "https://a.example.com", 5)
	require.NoError(t, err)
	assert.Len(t, links, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		writeJSON(t, w, map[string]any{"error": "bad key"})
	}))

	_, err := client.Map(context.Background(), "https://a.example.com", 5)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "bad key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestCrawlPollsAndPaginates(t *testing.T) {
	var polls atomic.Int32
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/crawl", func(w http.ResponseWriter, r *http.Request) {
		var req crawlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, 20, req.Limit)
		assert.Equal(t, []string{"^/docs/.*"}, req.IncludePaths)
		assert.Equal(t, "stealth", req.ScrapeOptions["proxy"])
		writeJSON(t, w, map[string]any{"success": true, "id": "job-1"})
	})
	mux.HandleFunc("/v1/crawl/job-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) == 1 {
			writeJSON(t, w, map[string]any{"status": "scraping", "total": 3, "completed": 1})
			return
		}
		writeJSON(t, w, map[string]any{
			"status": "completed",
			"next":   srvURL + "/v1/crawl/job-1/page2",
			"data": []any{
				map[string]any{
					"markdown": "# Install",
					"metadata": map[string]any{"title": "Install", "sourceURL": "https://docs.example.com/docs/install", "statusCode": 200},
				},
				map[string]any{
					"html":     "<h1>Config</h1><p>Set the key.</p>",
					"metadata": map[string]any{"url": "https://docs.example.com/docs/config"},
				},
			},
		})
	})
	mux.HandleFunc("/v1/crawl/job-1/page2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"status": "completed",
			"data": []any{
				map[string]any{"metadata": map[string]any{"sourceURL": "https://docs.example.com/docs/empty"}},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	srvURL = srv.URL

	client := New(config.FirecrawlConfig{BaseURL: srv.URL, RequestsPerSecond: 1000, Burst: 10, PollInterval: time.Millisecond})
	result, err := client.Crawl(context.Background(), "https://docs.example.com/docs/", CrawlOptions{
		Limit:        20,
		IncludePaths: []string{"^/docs/.*"},
		Stealth:      true,
	})
	require.NoError(t, err)

	require.Len(t, result.Pages, 2)
	assert.Equal(t, "https://docs.example.com/docs/install", result.Pages[0].URL)
	assert.Equal(t, "Install", result.Pages[0].Title)
	assert.Equal(t, 200, result.Pages[0].Metadata.StatusCode)
	assert.Contains(t, result.Pages[1].Markdown, "# Config")
	assert.Equal(t, []string{"https://docs.example.com/docs/empty"}, result.FailedURLs)
	assert.GreaterOrEqual(t, polls.Load(), int32(2))
}

func TestCrawlFailedJob(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/crawl", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"success": true, "id": "job-2"})
	})
	mux.HandleFunc("/v1/crawl/job-2", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"status": "failed"})
	})
	client := newTestClient(t, mux)

	_, err := client.Crawl(context.Background(), "https://x.example.com/docs", CrawlOptions{Limit: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job-2 failed")
}

func TestSearch(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/search", r.URL.Path)
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "cobra flags", req.Query)
		assert.Equal(t, 5, req.Limit)
		assert.Equal(t, []any{"markdown"}, req.ScrapeOptions["formats"])
		assert.Equal(t, []string{"github"}, req.Categories)

		writeJSON(t, w, map[string]any{
			"success": true,
			"data": []any{
				map[string]any{"url": "https://stackoverflow.com/q/1", "title": "Q", "markdown": "answer"},
				map[string]any{"title": "no url"},
			},
		})
	}))

	result, err := client.Search(context.Background(), "cobra flags", SearchOptions{Limit: 5, Scrape: true, Categories: []string{"github"}})
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	assert.Equal(t, "https://stackoverflow.com/q/1", result.Results[0].URL)
	assert.Equal(t, "answer", result.Results[0].Markdown)
}

func TestSearchNoResults(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{"success": true, "data": []any{}})
	}))

	_, err := client.Search(context.Background(), "nothing", SearchOptions{Limit: 5})
	assert.ErrorIs(t, err, ErrNoResults)
}
