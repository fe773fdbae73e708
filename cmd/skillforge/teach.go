package main

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/jingkaihe/skillforge/pkg/corpus"
)

var teachCmd = &cobra.Command{
	Use:   "teach <task>",
	Short: "Teach the model a task from an existing corpus",
	Long: `Run a teacher session over an existing corpus. Knowledge gaps reported by the
model are searched for and appended to the corpus between attempts.

Example:
  skillforge teach "configure the example client" --corpus ~/.skillforge/corpora/corpus_configure-the-example-client_20261001_120000
`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, _ := cmd.Flags().GetString("corpus")
		output, _ := cmd.Flags().GetString("output")
		if dir == "" {
			return errors.New("--corpus is required")
		}
		if _, err := corpus.ReadManifest(dir); err != nil {
			return err
		}
		return teach(cmd.Context(), cfg, strings.Join(args, " "), dir, teachOptions{output: output})
	},
}

func init() {
	teachCmd.Flags().String("corpus", "", "Corpus directory to teach from")
	teachCmd.Flags().StringP("output", "o", "", "Write the validated solution to this file")
}
