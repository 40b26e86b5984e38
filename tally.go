package tally

import (
	"log/slog"
	"time"

	"github.com/aretw0/tally/internal/platform"
	"github.com/aretw0/tally/pkg/core"
)

// Version exposes the version of the daemon.
// See version.go for the implementation using go:embed.

// --- Configuration ---

// Option defines a functional option for configuring tally.
type Option = platform.Option

// App bundles the document service and its session monitor.
type App = platform.App

// FileConfig is the content of tally.yaml.
type FileConfig = platform.FileConfig

// WithLogger sets the logger for the service and the session monitor.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRepository allows injecting a custom storage adapter.
func WithRepository(repo core.Repository) Option {
	return platform.WithRepository(repo)
}

// WithForceTemp forces the use of a temporary data directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the sandbox used when running via `go run`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithFileNames overrides the primary, backup and import-backup file names.
func WithFileNames(primary, backup, importBackup string) Option {
	return platform.WithFileNames(primary, backup, importBackup)
}

// WithWatcherErrorHandler registers a callback for watcher errors.
func WithWatcherErrorHandler(fn func(error)) Option {
	return platform.WithWatcherErrorHandler(fn)
}

// WithHeartbeatTimeout sets the countdown armed by each heartbeat.
func WithHeartbeatTimeout(d time.Duration) Option {
	return platform.WithHeartbeatTimeout(d)
}

// WithAutoShutdown enables or disables the heartbeat shutdown.
func WithAutoShutdown(enabled bool) Option {
	return platform.WithAutoShutdown(enabled)
}

// WithNonInteractive overrides the detection of automated runs.
func WithNonInteractive(enabled bool) Option {
	return platform.WithNonInteractive(enabled)
}

// WithTerminate replaces the action run after the session expired.
func WithTerminate(fn func()) Option {
	return platform.WithTerminate(fn)
}

// --- Factory ---

// New creates the document service for a data directory.
func New(dir string, opts ...Option) (*core.Service, error) {
	return platform.New(dir, opts...)
}

// Open creates the service together with the session monitor.
func Open(dir string, opts ...Option) (*App, error) {
	return platform.Open(dir, opts...)
}

// Init initializes a data directory explicitly.
func Init(dir string, opts ...Option) (core.Repository, error) {
	return platform.Init(dir, opts...)
}

// LoadConfig reads a tally.yaml file.
func LoadConfig(path string) (FileConfig, error) {
	return platform.LoadConfig(path)
}

// --- Safety & Utils ---

// ResolveDataPath determines the actual data directory based on safety rules.
func ResolveDataPath(userPath string, forceTemp bool) string {
	return platform.ResolveDataPath(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot looks upwards for a tally.yaml, .tally or .git marker.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
