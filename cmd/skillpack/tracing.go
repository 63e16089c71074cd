package main

import (
	"context"

	"github.com/jingkaihe/skillpack/pkg/telemetry"
	"github.com/jingkaihe/skillpack/pkg/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var shutdownTracing func(context.Context) error

// setupTracing installs the tracer provider when tracing is enabled. Spans
// are written to the debug log.
func setupTracing(cmd *cobra.Command) error {
	shutdown, err := telemetry.InitTracer(cmd.Context(), telemetry.Config{
		Enabled:        viper.GetBool("tracing.enabled"),
		ServiceName:    "skillpack",
		ServiceVersion: version.Get().Version,
		SamplerType:    viper.GetString("tracing.sampler"),
		SamplerRatio:   viper.GetFloat64("tracing.ratio"),
	})
	if err != nil {
		return err
	}
	shutdownTracing = shutdown
	return nil
}

func init() {
	rootCmd.PersistentFlags().Bool("tracing-enabled", false, "Log OpenTelemetry spans for each pipeline stage at debug level")
	rootCmd.PersistentFlags().String("tracing-sampler", "always", "Tracing sampler type (always, never, ratio)")
	rootCmd.PersistentFlags().Float64("tracing-ratio", 1, "Sampling ratio when using ratio sampler")

	viper.BindPFlag("tracing.enabled", rootCmd.PersistentFlags().Lookup("tracing-enabled"))
	viper.BindPFlag("tracing.sampler", rootCmd.PersistentFlags().Lookup("tracing-sampler"))
	viper.BindPFlag("tracing.ratio", rootCmd.PersistentFlags().Lookup("tracing-ratio"))
}
