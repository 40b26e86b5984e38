package main

import (
	"github.com/spf13/cobra"

	"github.com/aretw0/tally/internal/platform"
)

var readCmd = &cobra.Command{
	Use:   "read [jsonpath]",
	Short: "Print the document or a JSONPath query over it",
	Long: `Print the normalized document as JSON. An optional JSONPath expression
selects part of it, e.g.

  tally read '$.accounts[?(@.status == "Active")].name'`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openService()
		if err != nil {
			return err
		}
		defer closeService(svc)

		doc, err := svc.Load(cmd.Context())
		if err != nil {
			return err
		}

		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		result, err := platform.Query(doc, path)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), result)
	},
}

func init() {
	rootCmd.AddCommand(readCmd)
}
