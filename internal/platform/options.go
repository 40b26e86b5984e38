package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/tally/pkg/core"
)

// options holds the internal configuration for the tally daemon.
type options struct {
	repository core.Repository
	logger     *slog.Logger
	config     map[string]interface{}
}

// Option defines a functional option for configuring tally.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		repository: nil,
		logger:     nil,
		config:     make(map[string]interface{}),
	}
}

func parseOptions(opts []Option) *options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithLogger sets the logger for the service and the session monitor.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRepository allows injecting a custom storage adapter (e.g. a mock).
// If provided, the filesystem adapter is skipped.
func WithRepository(repo core.Repository) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithForceTemp forces the use of a temporary data directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.config["temp_dir"] = force
	}
}

// WithDevSafety controls the sandbox used when running via `go run`.
// By default (true), tally keeps its data in a temporary directory so a dev
// build never touches real data. Setting this to false uses the given path.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.config["dev_safety"] = enabled
	}
}

// WithFileNames overrides the primary, backup and import-backup file names.
// Empty names keep the defaults.
func WithFileNames(primary, backup, importBackup string) Option {
	return func(o *options) {
		o.config["file_name"] = primary
		o.config["backup_name"] = backup
		o.config["import_backup_name"] = importBackup
	}
}

// WithWatcherErrorHandler registers a callback for errors raised while
// watching the data directory. They are otherwise only logged.
func WithWatcherErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.config["watcher_error_handler"] = fn
	}
}

// WithHeartbeatTimeout sets the countdown armed by each heartbeat.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(o *options) {
		o.config["heartbeat_timeout"] = d
	}
}

// WithAutoShutdown enables or disables the heartbeat shutdown.
func WithAutoShutdown(enabled bool) Option {
	return func(o *options) {
		o.config["auto_shutdown"] = enabled
	}
}

// WithNonInteractive overrides the detection of automated runs. A
// non-interactive process never shuts itself down on missing heartbeats.
func WithNonInteractive(enabled bool) Option {
	return func(o *options) {
		o.config["non_interactive"] = enabled
	}
}

// WithTerminate replaces the action run after the session expired and the
// pending writes were drained. The default exits the process.
func WithTerminate(fn func()) Option {
	return func(o *options) {
		o.config["terminate"] = fn
	}
}
