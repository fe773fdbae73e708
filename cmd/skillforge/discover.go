package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/sources"
)

var discoverCmd = &cobra.Command{
	Use:   "discover <task>",
	Short: "Discover documentation sources for a task",
	Long: `Discover documentation sources for a task and print them in priority order.

Without --seed, candidate documentation roots are bootstrapped from the task.

Examples:
  skillforge discover "configure the example client" --seed https://docs.example.com/
  skillforge discover "stream responses with the anthropic sdk" --json
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.RequireFirecrawlCredentials(); err != nil {
			return err
		}

		seed, _ := cmd.Flags().GetString("seed")
		asJSON, _ := cmd.Flags().GetBool("json")
		task := strings.Join(args, " ")

		srcs, err := discoverSources(ctx, newDiscoverer(cfg), task, seed)
		if err != nil {
			return err
		}
		if asJSON {
			return printSourcesJSON(os.Stdout, srcs)
		}
		return printSources(os.Stdout, srcs)
	},
}

func init() {
	discoverCmd.Flags().String("seed", "", "Official documentation URL to start from")
	discoverCmd.Flags().Bool("json", false, "Print sources as JSON")
}

func printSources(w io.Writer, srcs []sources.Source) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRIORITY\tTIER\tORIGIN\tURL")
	for _, s := range srcs {
		fmt.Fprintf(tw, "%d\t%d\t%s\t%s\n", s.Priority, s.Tier, s.Origin, s.URL)
	}
	return tw.Flush()
}

type sourceView struct {
	URL      string `json:"url"`
	Title    string `json:"title,omitempty"`
	Origin   string `json:"origin"`
	Tier     int    `json:"tier"`
	Priority int    `json:"priority"`
}

func printSourcesJSON(w io.Writer, srcs []sources.Source) error {
	views := make([]sourceView, 0, len(srcs))
	for _, s := range srcs {
		views = append(views, sourceView{URL: s.URL, Title: s.Title, Origin: string(s.Origin), Tier: int(s.Tier), Priority: s.Priority})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(views), "failed to encode sources")
}
