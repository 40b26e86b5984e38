package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/introspection"
	"github.com/aretw0/lifecycle"
	"github.com/aretw0/lifecycle/pkg/core/supervisor"
	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/spf13/cobra"

	"github.com/aretw0/tally"
	"github.com/aretw0/tally/pkg/adapters/fs"
	tallylifecycle "github.com/aretw0/tally/pkg/adapters/lifecycle"
	"github.com/aretw0/tally/pkg/core"
	"github.com/aretw0/tally/pkg/server"
)

var (
	serveAddr           string
	serveStatic         string
	serveTimeout        int
	serveNoAutoShutdown bool
	serveNoWatch        bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP daemon for the browser app",
	Long: `Serve the data API on a loopback address. Unless disabled, the daemon
exits on its own once the browser stops sending heartbeats, after draining
pending writes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		if flags.Changed("addr") {
			cfg.Addr = serveAddr
		}
		if flags.Changed("static") {
			cfg.StaticDir = serveStatic
		}
		if flags.Changed("timeout") {
			cfg.HeartbeatTimeout = serveTimeout
		}
		if serveNoAutoShutdown {
			cfg.AutoShutdown = false
		}
		if serveNoWatch {
			cfg.Watch = false
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runServe(cmd.Context(), slog.Default())
	},
}

func runServe(parent context.Context, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := append(cfg.Options(),
		tally.WithLogger(logger),
		// An expired session stops the server like a signal would.
		tally.WithTerminate(stop),
	)
	app, err := tally.Open(cfg.DataDir, opts...)
	if err != nil {
		return err
	}

	if cfg.Watch {
		stopWatcher, err := superviseWatcher(ctx, app.Repository, logger)
		if err != nil {
			logger.Warn("watching the data directory is disabled", "error", err)
		} else {
			defer func() {
				stopCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
				defer cancel()
				if err := stopWatcher(stopCtx); err != nil {
					logger.Warn("failed to stop watcher", "error", err)
				}
			}()
		}
	}

	srv := server.New(server.Config{
		Service:   app.Service,
		Monitor:   app.Monitor,
		Logger:    logger,
		StaticDir: cfg.StaticDir,
	})
	httpServer := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		_ = app.Close(context.Background())
		return fmt.Errorf("failed to listen on %s: %w", cfg.Addr, err)
	}
	logger.Info("tally listening", "addr", "http://"+listener.Addr().String(), "data", app.DataDir)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			_ = app.Close(context.Background())
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	if err := app.Close(shutdownCtx); err != nil {
		return fmt.Errorf("failed to drain pending writes: %w", err)
	}
	if state, ok := app.Repository.(introspection.Introspectable); ok {
		logger.Debug("final state", "repository", state.State())
	}
	return nil
}

// superviseWatcher runs the data directory watcher under a supervisor that
// restarts it on failure, and logs every external change.
func superviseWatcher(ctx context.Context, repo core.Repository, logger *slog.Logger) (func(context.Context) error, error) {
	fsRepo, ok := repo.(*fs.Repository)
	if !ok {
		return nil, errors.New("repository does not support watching")
	}

	events := make(chan core.Event, 16)
	spec := supervisor.Spec{
		Name: "fs-watcher",
		Type: string(worker.TypeGoroutine),
		Factory: func() (worker.Worker, error) {
			return fsRepo.Watcher("", events), nil
		},
		Backoff: supervisor.Backoff{
			InitialInterval: 100 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Multiplier:      2,
			ResetDuration:   30 * time.Second,
			MaxRestarts:     5,
			MaxDuration:     time.Minute,
		},
		RestartPolicy: supervisor.RestartOnFailure,
	}

	sup := supervisor.New("tally-watch", supervisor.StrategyOneForOne, spec)
	if err := sup.Start(ctx); err != nil {
		return nil, err
	}

	source := tallylifecycle.NewSource(events)
	if err := source.Start(ctx); err != nil {
		return nil, err
	}
	lifecycle.Go(ctx, func(ctx context.Context) error {
		for e := range source.Events() {
			logger.Warn("data changed outside tally; reload the page to see it", "event", e.String())
		}
		return nil
	})

	return sup.Stop, nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default 127.0.0.1:3000)")
	serveCmd.Flags().StringVar(&serveStatic, "static", "", "Directory with the web client to serve at /")
	serveCmd.Flags().IntVar(&serveTimeout, "timeout", 0, "Heartbeat timeout in seconds (default 15)")
	serveCmd.Flags().BoolVar(&serveNoAutoShutdown, "no-auto-shutdown", false, "Keep running without heartbeats")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not watch the data directory for external changes")
}
