package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/corpus"
	"github.com/jingkaihe/skillforge/pkg/firecrawl"
	"github.com/jingkaihe/skillforge/pkg/presenter"
	"github.com/jingkaihe/skillforge/pkg/sources"
)

var crawlCmd = &cobra.Command{
	Use:   "crawl <url>",
	Short: "Crawl a documentation site into the knowledge base",
	Long: `Crawl a whole documentation site into <state_dir>/knowledge/<domain>, using the
same manifest and page format as a task corpus.

Example:
  skillforge crawl https://docs.example.com/ --limit 100
`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireFirecrawlCredentials(); err != nil {
			return err
		}

		rawURL := args[0]
		limit, _ := cmd.Flags().GetInt("limit")
		force, _ := cmd.Flags().GetBool("force")
		stealth, _ := cmd.Flags().GetBool("stealth")

		name, err := knowledgeDirName(rawURL)
		if err != nil {
			return err
		}
		dir := filepath.Join(cfg.KnowledgeDir(), name)
		if force {
			if err := os.RemoveAll(dir); err != nil {
				return errors.Wrap(err, "failed to remove existing knowledge directory")
			}
		}

		presenter.Info(fmt.Sprintf("Crawling %s (limit: %d pages)...", rawURL, limit))
		builder := corpus.NewBuilder(firecrawl.New(cfg.Firecrawl), cfg.KnowledgeDir())
		dir, err = builder.Build(cmd.Context(), "deep dive: "+rawURL, []sources.Source{sources.NewSeed(rawURL)}, corpus.BuildOptions{
			Limit:   limit,
			Stealth: stealth,
			Dir:     dir,
		})
		if err != nil {
			return err
		}

		m, err := corpus.ReadManifest(dir)
		if err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("Saved %d pages to %s", m.TotalPages, dir))
		return nil
	},
}

func init() {
	crawlCmd.Flags().Int("limit", 50, "Maximum pages to crawl")
	crawlCmd.Flags().Bool("force", false, "Replace an existing crawl of the same domain")
	crawlCmd.Flags().Bool("stealth", false, "Crawl through the stealth proxy from the start")
}

// knowledgeDirName maps a URL to its knowledge directory: the host with dots
// replaced by underscores.
func knowledgeDirName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "", errors.Errorf("invalid URL %q", rawURL)
	}
	return strings.ReplaceAll(strings.ToLower(u.Host), ".", "_"), nil
}
