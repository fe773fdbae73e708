package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var forgeCmd = &cobra.Command{
	Use:   "forge <task>",
	Short: "Run the full pipeline: discover, build a corpus, teach and validate",
	Long: `Run the full pipeline for a task: discover documentation, assemble a corpus,
run a teacher session over it, validate the result and save the session trace.

Examples:
  skillforge forge "configure the example client" --seed https://docs.example.com/
  skillforge forge "deploy a worker with wrangler" -o solution.md
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.RequireCredentials(); err != nil {
			return err
		}

		task := strings.Join(args, " ")
		output, _ := cmd.Flags().GetString("output")

		dir, err := buildCorpus(ctx, cfg, task, corpusFlags(cmd))
		if err != nil {
			return err
		}
		return teach(ctx, cfg, task, dir, teachOptions{output: output})
	},
}

func init() {
	addCorpusFlags(forgeCmd)
	forgeCmd.Flags().StringP("output", "o", "", "Write the validated solution to this file")
}
