package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/tally/internal/platform"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check the data file and its backup without changing them",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		v, err := platform.Verify(cfg.DataDir)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "primary  %s  %s\n", v.Path, describe(v.PrimaryDigest, v.PrimaryErr))
		fmt.Fprintf(out, "backup   %s  %s\n", v.BackupPath, describe(v.BackupDigest, v.BackupErr))
		if v.InSync() {
			fmt.Fprintln(out, "primary and backup hold the same data")
		}

		if !v.Healthy() {
			if v.BackupErr == nil {
				return errors.New("primary is damaged; it will be restored from the backup on the next read")
			}
			return errors.New("primary is damaged and no usable backup exists")
		}
		return nil
	},
}

func describe(digest string, err error) string {
	if err != nil {
		return "ERROR " + err.Error()
	}
	return "ok " + digest[:12]
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
