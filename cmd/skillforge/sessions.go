package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/traces"
	"github.com/jingkaihe/skillforge/pkg/usage"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved teacher sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := traces.New(ctx, cfg.Traces, cfg.StateDir)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List(ctx)
		if err != nil {
			return err
		}
		return printSessions(cmd.OutOrStdout(), list)
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a saved session as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, err := traces.New(ctx, cfg.Traces, cfg.StateDir)
		if err != nil {
			return err
		}
		defer store.Close()

		rec, err := store.Load(ctx, args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return errors.Wrap(enc.Encode(rec), "failed to encode session")
	},
}

var sessionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage and outcomes of saved sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		days, _ := cmd.Flags().GetInt("days")

		store, err := traces.New(ctx, cfg.Traces, cfg.StateDir)
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List(ctx)
		if err != nil {
			return err
		}
		summaries := make([]usage.SessionSummary, 0, len(list))
		for _, s := range list {
			summaries = append(summaries, s)
		}
		return printStats(cmd.OutOrStdout(), usage.Calculate(summaries, statsStart(days, time.Now()), time.Time{}))
	},
}

func init() {
	sessionsStatsCmd.Flags().Int("days", 0, "Only include sessions from the last N days (0 for all)")
	sessionsCmd.AddCommand(sessionsShowCmd, sessionsStatsCmd)
}

func statsStart(days int, now time.Time) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return now.UTC().Truncate(24*time.Hour).AddDate(0, 0, -(days - 1))
}

func printStats(w io.Writer, stats *usage.Stats) error {
	if stats.Total.Sessions == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DATE\tSESSIONS\tSUCCEEDED\tGAPS\tINPUT\tOUTPUT")
	for _, d := range stats.Daily {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n", d.Date.Format("2006-01-02"), d.Sessions, d.Succeeded, d.GapsFilled,
			usage.FormatNumber(d.Usage.InputTokens), usage.FormatNumber(d.Usage.OutputTokens))
	}
	fmt.Fprintf(tw, "TOTAL\t%d\t%d\t%d\t%s\t%s\n", stats.Total.Sessions, stats.Total.Succeeded, stats.Total.GapsFilled,
		usage.FormatNumber(stats.Total.Usage.InputTokens), usage.FormatNumber(stats.Total.Usage.OutputTokens))
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "MODEL\tSESSIONS\tSUCCESS RATE\tTOKENS")
	for _, m := range stats.Models() {
		t := stats.ByModel[m]
		fmt.Fprintf(tw, "%s\t%d\t%.1f%%\t%s\n", m, t.Sessions, t.SuccessRate()*100, usage.FormatNumber(t.Usage.TotalTokens()))
	}
	return tw.Flush()
}

func printSessions(w io.Writer, list []traces.Summary) error {
	if len(list) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSUCCESS\tATTEMPTS\tGAPS\tTASK")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%d\t%s\n",
			s.ID, s.CreatedAt.Local().Format("2006-01-02 15:04"), s.Success, s.Attempts, s.GapsFilled, s.Task)
	}
	return tw.Flush()
}
