package platform

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/aretw0/tally/pkg/adapters/fs"
	"github.com/aretw0/tally/pkg/core"
	"github.com/aretw0/tally/pkg/session"
)

// shutdownTimeout bounds how long an expired session waits for pending writes.
const shutdownTimeout = 5 * time.Second

// New creates the document service for the data directory at dir.
//
//	svc, err := tally.New("./data", tally.WithLogger(logger))
func New(dir string, opts ...Option) (*core.Service, error) {
	repo, err := Init(dir, opts...)
	if err != nil {
		return nil, err
	}

	o := parseOptions(opts)
	return core.NewService(repo, o.logger), nil
}

// App bundles what the daemon runs: the document service and the session
// monitor that shuts it down.
type App struct {
	Service    *core.Service
	Monitor    *session.Monitor
	Repository core.Repository
	DataDir    string
}

// Open creates the service and a session monitor wired to it. When the
// session expires, pending writes are drained before the process exits.
func Open(dir string, opts ...Option) (*App, error) {
	svc, err := New(dir, opts...)
	if err != nil {
		return nil, err
	}

	o := parseOptions(opts)
	app := &App{
		Service:    svc,
		Repository: svc.Repository(),
		DataDir:    dir,
	}
	if repo, ok := app.Repository.(*fs.Repository); ok {
		app.DataDir = filepath.Dir(repo.Path)
	}

	timeout, _ := o.config["heartbeat_timeout"].(time.Duration)
	autoShutdown := true
	if val, ok := o.config["auto_shutdown"].(bool); ok {
		autoShutdown = val
	}
	nonInteractive, ok := o.config["non_interactive"].(bool)
	if !ok {
		nonInteractive = IsNonInteractive()
	}
	terminate, _ := o.config["terminate"].(func())
	if terminate == nil {
		terminate = func() { os.Exit(0) }
	}

	app.Monitor = session.New(
		session.WithLogger(o.logger),
		session.WithTimeout(timeout),
		session.WithEnabled(autoShutdown),
		session.WithSuppressed(nonInteractive),
		session.WithTerminate(func() {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := svc.Close(ctx); err != nil && o.logger != nil {
				o.logger.Error("failed to drain pending writes", "error", err)
			}
			terminate()
		}),
	)

	return app, nil
}

// Close stops the monitor and drains pending writes.
func (a *App) Close(ctx context.Context) error {
	a.Monitor.Stop()
	return a.Service.Close(ctx)
}
