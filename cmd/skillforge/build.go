package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/corpus"
	"github.com/jingkaihe/skillforge/pkg/firecrawl"
	"github.com/jingkaihe/skillforge/pkg/presenter"
)

var buildCmd = &cobra.Command{
	Use:   "build <task>",
	Short: "Discover sources for a task and assemble them into a corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireFirecrawlCredentials(); err != nil {
			return err
		}
		dir, err := buildCorpus(cmd.Context(), cfg, strings.Join(args, " "), corpusFlags(cmd))
		if err != nil {
			return err
		}
		fmt.Println(dir)
		return nil
	},
}

type buildFlags struct {
	seed string
	opts corpus.BuildOptions
}

func addCorpusFlags(cmd *cobra.Command) {
	cmd.Flags().String("seed", "", "Official documentation URL to start from")
	cmd.Flags().Int("limit", 0, "Maximum pages per domain crawl (default from config)")
	cmd.Flags().Bool("stealth", false, "Crawl through the stealth proxy from the start")
}

func corpusFlags(cmd *cobra.Command) buildFlags {
	var f buildFlags
	f.seed, _ = cmd.Flags().GetString("seed")
	f.opts.Limit, _ = cmd.Flags().GetInt("limit")
	f.opts.Stealth, _ = cmd.Flags().GetBool("stealth")
	if f.opts.Limit <= 0 {
		f.opts.Limit = cfg.Corpus.Limit
	}
	f.opts.Stealth = f.opts.Stealth || cfg.Corpus.Stealth
	return f
}

func init() {
	addCorpusFlags(buildCmd)
}

// buildCorpus discovers sources for task and builds a new corpus from them.
func buildCorpus(ctx context.Context, c *config.Config, task string, f buildFlags) (string, error) {
	presenter.Section("Discovering sources")
	srcs, err := discoverSources(ctx, newDiscoverer(c), task, f.seed)
	if err != nil {
		return "", err
	}
	presenter.Info(fmt.Sprintf("Found %d sources", len(srcs)))

	presenter.Section("Building corpus")
	dir, err := corpus.NewBuilder(firecrawl.New(c.Firecrawl), c.Corpus.Root).Build(ctx, task, srcs, f.opts)
	if err != nil {
		return "", err
	}

	m, err := corpus.ReadManifest(dir)
	if err != nil {
		return "", err
	}
	presenter.Success(fmt.Sprintf("Corpus of %d pages (~%d tokens) at %s", m.TotalPages, m.TotalTokensEstimate, dir))
	return dir, nil
}
