package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/firecrawl"
	"github.com/jingkaihe/skillforge/pkg/forgeerr"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/presenter"
)

var searchCmd = &cobra.Command{
	Use:   "search [query...]",
	Short: "Search the web and cache the scraped results as markdown",
	Long: `Search the web for a query and write the scraped results to a markdown cache
file under <state_dir>/cache. The query is read from stdin when no arguments are
given, so error output can be piped in directly.

Examples:
  skillforge search "example client retry configuration"
  python app.py 2>&1 | skillforge search --github
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireFirecrawlCredentials(); err != nil {
			return err
		}

		query, err := readQuery(args, cmd.InOrStdin())
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		retries, _ := cmd.Flags().GetInt("retries")
		github, _ := cmd.Flags().GetBool("github")

		ctx := cmd.Context()
		res, err := searchWithRetries(ctx, firecrawl.New(cfg.Firecrawl), query, searchOptions(limit, github), retries)
		if errors.Is(err, firecrawl.ErrNoResults) {
			presenter.Warning("No results found for: " + query)
			presenter.Info("Try a different query or crawl a specific docs URL with `skillforge crawl`.")
			return nil
		}
		if err != nil {
			return err
		}

		path, err := writeSearchCache(cfg.CacheDir(), query, res.Results, time.Now())
		if err != nil {
			return err
		}
		printFindings(cmd.OutOrStdout(), path, query, res.Results)
		return nil
	},
}

func init() {
	searchCmd.Flags().Int("limit", 10, "Number of results to fetch")
	searchCmd.Flags().Int("retries", 3, "Attempts before giving up")
	searchCmd.Flags().Bool("github", false, "Search GitHub issues and discussions only")
}

func searchOptions(limit int, github bool) firecrawl.SearchOptions {
	opts := firecrawl.SearchOptions{Limit: limit, Scrape: true}
	if github {
		opts.Categories = []string{"github"}
	}
	return opts
}

// readQuery joins args, or reads the query from stdin when there are none.
func readQuery(args []string, stdin io.Reader) (string, error) {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" && stdin != nil {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", errors.Wrap(err, "failed to read query from stdin")
		}
		query = strings.TrimSpace(string(b))
	}
	if query == "" {
		return "", errors.New("empty query, provide error text or a search query")
	}
	return query, nil
}

// searchRetryStep is the delay unit between search attempts.
var searchRetryStep = 1500 * time.Millisecond

type searcher interface {
	Search(ctx context.Context, query string, opts firecrawl.SearchOptions) (*firecrawl.SearchResult, error)
}

// searchWithRetries retries the whole search with a linearly growing delay.
// An empty result is final.
func searchWithRetries(ctx context.Context, svc searcher, query string, opts firecrawl.SearchOptions, attempts int) (*firecrawl.SearchResult, error) {
	rc := config.RetryConfig{Attempts: attempts, InitialDelay: int(searchRetryStep.Milliseconds()), BackoffType: "fixed"}
	retryIf := func(err error) bool { return !errors.Is(err, firecrawl.ErrNoResults) }
	onRetry := func(n uint, err error) {
		logger.G(ctx).WithError(err).WithField("attempt", n+1).WithField("max_attempts", attempts).Warn("search failed, retrying")
	}

	var res *firecrawl.SearchResult
	err := retry.Do(func() error {
		var err error
		res, err = svc.Search(ctx, query, opts)
		return err
	}, append(rc.Options(ctx, retryIf, onRetry), retry.DelayType(linearDelay(searchRetryStep)))...)
	if err != nil {
		if errors.Is(err, firecrawl.ErrNoResults) {
			return nil, err
		}
		return nil, forgeerr.Wrap(forgeerr.KindSearch, err, "search failed after %d attempts", max(attempts, 1))
	}
	return res, nil
}

func linearDelay(step time.Duration) retry.DelayTypeFunc {
	return func(n uint, _ error, _ *retry.Config) time.Duration {
		return time.Duration(n+1) * step
	}
}

// writeSearchCache writes results as markdown to <dir>/<timestamp>_search.md.
func writeSearchCache(dir, query string, results []firecrawl.SearchItem, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "failed to create cache directory")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Search Results\n\nQuery: %s\nTimestamp: %s\n\n## Results\n", query, now.UTC().Format(time.RFC3339))
	for i, item := range results {
		title := item.Title
		if title == "" {
			title = item.URL
		}
		fmt.Fprintf(&b, "### %d. %s\n- URL: %s\n", i+1, title, item.URL)
		if item.Description != "" {
			fmt.Fprintf(&b, "- Description: %s\n", item.Description)
		}
		if md := strings.TrimSpace(item.Markdown); md != "" {
			fmt.Fprintf(&b, "\n%s\n", md)
		}
		b.WriteString("\n")
	}

	path := filepath.Join(dir, now.Format("20060102_150405")+"_search.md")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(b.String())+"\n"), 0o644); err != nil {
		return "", errors.Wrap(err, "failed to write search cache")
	}
	return path, nil
}

func printFindings(w io.Writer, path, query string, results []firecrawl.SearchItem) {
	fmt.Fprintln(w, "Top findings:")
	for i, item := range results {
		if i == 3 {
			break
		}
		title := item.Title
		if title == "" {
			title = item.URL
		}
		if item.Description != "" {
			fmt.Fprintf(w, "%d. %s - %s\n", i+1, title, item.Description)
		} else {
			fmt.Fprintf(w, "%d. %s\n", i+1, title)
		}
	}
	fmt.Fprintf(w, "Cache file: %s\n", path)
	fmt.Fprintf(w, "Search query: %s\n", query)
}
