package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jingkaihe/skillforge/pkg/config"
	"github.com/jingkaihe/skillforge/pkg/telemetry"
	"github.com/jingkaihe/skillforge/pkg/version"
)

// initTracing initializes OpenTelemetry from the loaded configuration.
func initTracing(ctx context.Context, c *config.Config) (func(context.Context) error, error) {
	tc := c.Tracing
	if tc.ServiceName == "" {
		tc.ServiceName = "skillforge"
	}
	tc.ServiceVersion = version.Get().Version

	shutdown, err := telemetry.InitTracer(ctx, tc)
	if err != nil {
		return nil, err
	}
	return shutdown, nil
}

// withTracing wraps a command's RunE in a span.
func withTracing(cmd *cobra.Command) *cobra.Command {
	originalRunE := cmd.RunE

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		attrs := []attribute.KeyValue{
			attribute.String("command.name", cmd.Name()),
			attribute.String("command.path", cmd.CommandPath()),
			attribute.Int("args.count", len(args)),
		}
		cmd.Flags().Visit(func(flag *pflag.Flag) {
			attrs = append(attrs, attribute.String("flag."+flag.Name, flag.Value.String()))
		})

		ctx, span := telemetry.Tracer().Start(cmd.Context(), "cli.command", trace.WithAttributes(attrs...))
		defer span.End()
		cmd.SetContext(ctx)

		if err := originalRunE(cmd, args); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		span.SetStatus(codes.Ok, "")
		return nil
	}

	return cmd
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.Bool("tracing-enabled", false, "Enable OpenTelemetry tracing")
	flags.String("tracing-sampler", "", "Tracing sampler type (always, never, ratio)")
	flags.Float64("tracing-ratio", 0, "Sampling ratio when using the ratio sampler")

	_ = viper.BindPFlag("tracing.enabled", flags.Lookup("tracing-enabled"))
	_ = viper.BindPFlag("tracing.sampler_type", flags.Lookup("tracing-sampler"))
	_ = viper.BindPFlag("tracing.sampler_ratio", flags.Lookup("tracing-ratio"))
}
