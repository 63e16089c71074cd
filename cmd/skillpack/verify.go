package main

import (
	"fmt"

	"github.com/jingkaihe/skillpack/pkg/archive"
	"github.com/jingkaihe/skillpack/pkg/presenter"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <archive> <sha256>",
	Short: "Check an archive against its published SHA-256",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sum, err := archive.Verify(args[0], args[1])
		if err != nil {
			return err
		}
		presenter.Success(fmt.Sprintf("%s matches %s", args[0], sum))
		return nil
	},
}
