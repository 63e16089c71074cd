package main

import (
	"fmt"

	"github.com/jingkaihe/skillpack/pkg/version"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Long:  `Print the version information of skillpack in JSON format.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		json, err := version.Get().JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), json)
		return nil
	},
}
