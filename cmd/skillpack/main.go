package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/jingkaihe/skillpack/pkg/logger"
	"github.com/jingkaihe/skillpack/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configName = "skillpack"

var rootCmd = &cobra.Command{
	Use:   "skillpack",
	Short: "Validate, version and package assistant skills",
	Long: `skillpack validates a skill directory's SKILL.md, bumps its semantic version,
renders the download and user guides and produces a reproducible zip archive
with a SHA-256 checksum.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		if err := setupOutput(cmd); err != nil {
			return err
		}
		return setupTracing(cmd)
	},
}

func init() {
	viper.SetDefault("log_level", "warn")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("color", "auto")
	viper.SetDefault("strict_templates", false)
	viper.SetDefault("warn_size_bytes", int64(10*1024*1024))
	viper.SetDefault("tracing.enabled", false)

	rootCmd.PersistentFlags().String("config", "", "Config file (default ./skillpack.yaml, then ~/.skillpack/skillpack.yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().String("color", "auto", "Color output (auto, always, never)")

	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("color", rootCmd.PersistentFlags().Lookup("color"))

	rootCmd.AddCommand(packageCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file. Only an explicitly named file is
// required to exist. Environment variables are never consulted.
func loadConfig(cmd *cobra.Command) error {
	viper.SetConfigType("yaml")

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "failed to read config %s", path)
		}
		return nil
	}

	viper.SetConfigName(configName)
	viper.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".skillpack"))
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config")
	}
	return nil
}

func setupOutput(cmd *cobra.Command) error {
	mode, err := presenter.ParseColorMode(viper.GetString("color"))
	if err != nil {
		return err
	}
	presenter.Default().SetColorMode(mode)
	presenter.Default().SetOutput(cmd.OutOrStdout(), cmd.ErrOrStderr())
	presenter.Default().SetInput(cmd.InOrStdin())

	return logger.Configure(viper.GetString("log_level"), viper.GetString("log_format"), cmd.ErrOrStderr())
}

// run executes the root command and returns the process exit code.
func run() int {
	ctx := context.Background()
	err := rootCmd.ExecuteContext(ctx)

	if shutdownTracing != nil {
		if serr := shutdownTracing(ctx); serr != nil {
			logger.G(ctx).WithError(serr).Warn("failed to shut down tracing")
		}
	}

	if err != nil {
		presenter.Error(err, kindOf(err))
		return 1
	}
	return 0
}

func main() {
	os.Exit(run())
}
