package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jingkaihe/skillpack/pkg/packager"
	"github.com/jingkaihe/skillpack/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// HistoryConfig holds configuration for the history command
type HistoryConfig struct {
	Name   string
	Output outputFormat
}

// NewHistoryConfig creates a new HistoryConfig with default values
func NewHistoryConfig() *HistoryConfig {
	return &HistoryConfig{Output: formatText}
}

var historyCmd = &cobra.Command{
	Use:   "history [output-dir]",
	Short: "List packaged versions in an output directory",
	Long: `List the {name}-v{version}.zip archives in output-dir (default: the
configured output_dir) in version order, with size and SHA-256.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		config := getHistoryConfigFromFlags(cmd)

		dir := viper.GetString("output_dir")
		if len(args) > 0 {
			dir = args[0]
		}
		if dir == "" {
			return errors.New("no output directory given: pass one or set output_dir in skillpack.yaml")
		}

		releases, err := packager.History(dir, config.Name)
		if err != nil {
			return err
		}

		if config.Output.structured() {
			return config.Output.write(cmd.OutOrStdout(), releases)
		}

		if len(releases) == 0 {
			presenter.Info(fmt.Sprintf("No archives found in %s", dir))
			return nil
		}

		current := ""
		for _, r := range releases {
			if r.Name != current {
				if current != "" {
					presenter.Info("")
				}
				presenter.Section(r.Name)
				current = r.Name
			}
			presenter.Info(fmt.Sprintf("v%-10s %10s  %s  %s",
				r.Version, humanize.IBytes(uint64(r.SizeBytes)), r.SHA256, r.ModTime.Format("2006-01-02 15:04")))
		}
		return nil
	},
}

func init() {
	defaults := NewHistoryConfig()
	historyCmd.Flags().StringP("name", "n", "", "Only list archives of this skill")
	historyCmd.Flags().Var(&defaults.Output, "output", "Output format (text, json, yaml)")
}

// getHistoryConfigFromFlags extracts history configuration from command flags
func getHistoryConfigFromFlags(cmd *cobra.Command) *HistoryConfig {
	config := NewHistoryConfig()

	if name, err := cmd.Flags().GetString("name"); err == nil {
		config.Name = name
	}
	if f := cmd.Flags().Lookup("output"); f != nil {
		config.Output = outputFormat(f.Value.String())
	}

	return config
}
