package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/tally/pkg/adapters/fs"
	"github.com/aretw0/tally/pkg/core"
	"github.com/aretw0/tally/pkg/normalize"
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace all data with the content of a JSON or YAML file",
	Long: `Replace the whole document with the content of file. The current data
is copied to the import backup first. Invalid values are repaired the same
way as on the HTTP import.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file := args[0]
		ext := strings.ToLower(filepath.Ext(file))
		serializer, ok := fs.DefaultSerializers()[ext]
		if !ok || ext == ".csv" {
			return fmt.Errorf("cannot import %s files", ext)
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		raw, err := serializer.Parse(bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("%w: %s: %v", core.ErrValidation, file, err)
		}
		if _, ok := raw.(map[string]any); !ok {
			return fmt.Errorf("%w: %s must hold an object, got %T", core.ErrValidation, file, raw)
		}

		if asJSON, err := json.Marshal(raw); err == nil {
			if issues, err := normalize.CheckSchema(asJSON); err != nil {
				slog.Warn("import schema check failed", "error", err)
			} else if len(issues) > 0 {
				slog.Warn("import does not match the document schema", "issues", issues)
			}
		}

		svc, err := openService()
		if err != nil {
			return err
		}
		defer closeService(svc)

		doc := normalize.Document(raw)
		if err := svc.Import(cmd.Context(), doc); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d accounts and %d goals from %s\n", len(doc.Accounts), len(doc.Goals), file)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
