package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/tally"
	"github.com/aretw0/tally/pkg/core"
)

const closeTimeout = 5 * time.Second

// openService opens the service over the configured data directory.
func openService() (*core.Service, error) {
	return tally.New(cfg.DataDir, tally.WithLogger(slog.Default()))
}

// closeService drains pending writes before the command returns.
func closeService(svc *core.Service) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := svc.Close(ctx); err != nil {
		slog.Error("failed to drain pending writes", "error", err)
	}
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
