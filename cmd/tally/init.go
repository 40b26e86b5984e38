package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/tally"
	"github.com/aretw0/tally/pkg/adapters/fs"
	"github.com/aretw0/tally/pkg/core"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the data file if it does not exist",
	Long: `Create the data directory and an empty data file. Running it on an
existing directory keeps the data and refreshes the startup backup.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := tally.Init(cfg.DataDir, tally.WithLogger(slog.Default()))
		if err != nil {
			return fmt.Errorf("failed to initialize data directory: %w", err)
		}
		defer closeService(core.NewService(repo, nil))

		path := cfg.DataDir
		if fsRepo, ok := repo.(*fs.Repository); ok {
			path = fsRepo.Path
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Initialized tally data in", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
