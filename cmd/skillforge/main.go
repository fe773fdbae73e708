package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/logger"
	"github.com/jingkaihe/skillforge/pkg/presenter"
)

var (
	// cfg is loaded once per invocation before any command runs.
	cfg *config.Config

	initErr         error
	shutdownTracing func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "skillforge",
	Short: "Turn web documentation into validated, reusable skills",
	Long: `skillforge discovers documentation for a task, assembles it into a corpus,
and teaches a language model to perform the task from it. Knowledge gaps the
model reports are searched for and added to the corpus until the model produces
a solution that passes validation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if initErr != nil {
			return initErr
		}

		c, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		if err := logger.SetLogLevel(c.LogLevel); err != nil {
			return err
		}
		logger.SetLogFormat(c.LogFormat)
		cfg = c

		shutdown, err := initTracing(cmd.Context(), c)
		if err != nil {
			return err
		}
		shutdownTracing = shutdown
		return nil
	},
}

func init() {
	initErr = config.Init(viper.GetViper())

	flags := rootCmd.PersistentFlags()
	flags.String("state-dir", "", "Directory for corpora, caches and session traces (default $HOME/.skillforge)")
	flags.String("log-level", "", "Log level (panic, fatal, error, warn, info, debug, trace)")
	flags.String("log-format", "", "Log format (text or json)")
	flags.String("provider", "", "LLM provider to use (anthropic, openai or google)")
	flags.String("model", "", "LLM model to use (overrides config)")
	flags.Int("max-tokens", 0, "Maximum tokens for a model response (overrides config)")

	bindFlag("state_dir", "state-dir")
	bindFlag("log_level", "log-level")
	bindFlag("log_format", "log-format")
	bindFlag("llm.provider", "provider")
	bindFlag("llm.model", "model")
	bindFlag("llm.max_tokens", "max-tokens")
}

// bindFlag binds a persistent flag to a config key. Unset flags leave the
// configured value in place.
func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	if errors.Is(err, context.Canceled) {
		return 130
	}
	return 1
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rootCmd.AddCommand(
		withTracing(discoverCmd),
		withTracing(buildCmd),
		withTracing(teachCmd),
		withTracing(forgeCmd),
		withTracing(searchCmd),
		withTracing(crawlCmd),
		sessionsCmd,
		versionCmd,
	)

	err := rootCmd.ExecuteContext(ctx)
	if shutdownTracing != nil {
		if serr := shutdownTracing(context.Background()); serr != nil {
			logger.G(ctx).WithError(serr).Warn("failed to shut down tracing")
		}
	}
	if err != nil {
		presenter.Error(err, "skillforge")
		cancel()
		os.Exit(exitCode(err))
	}
}
