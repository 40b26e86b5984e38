package platform

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/tally/pkg/session"
)

// DefaultAddr is the loopback address the daemon listens on.
const DefaultAddr = "127.0.0.1:3000"

// FileConfig is the content of tally.yaml. Environment variables override
// it and command line flags override both.
type FileConfig struct {
	DataDir          string `yaml:"data_dir"`
	Addr             string `yaml:"addr"`
	StaticDir        string `yaml:"static_dir"`
	HeartbeatTimeout int    `yaml:"heartbeat_timeout"` // seconds
	AutoShutdown     bool   `yaml:"auto_shutdown"`
	Watch            bool   `yaml:"watch"`
	NonInteractive   bool   `yaml:"non_interactive"`
	LogLevel         string `yaml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() FileConfig {
	return FileConfig{
		DataDir:          ".",
		Addr:             DefaultAddr,
		HeartbeatTimeout: 15,
		AutoShutdown:     true,
		Watch:            true,
		LogLevel:         "info",
	}
}

// LoadConfig reads a tally.yaml file on top of the defaults. Relative
// directories are resolved against the file's directory.
func LoadConfig(path string) (FileConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	base := filepath.Dir(path)
	if cfg.DataDir != "" && !filepath.IsAbs(cfg.DataDir) {
		cfg.DataDir = filepath.Join(base, cfg.DataDir)
	}
	if cfg.StaticDir != "" && !filepath.IsAbs(cfg.StaticDir) {
		cfg.StaticDir = filepath.Join(base, cfg.StaticDir)
	}
	return cfg, cfg.Validate()
}

// Discover finds the project root above startDir and loads its tally.yaml.
// Without a root or a file the defaults are returned.
func Discover(startDir string) (FileConfig, error) {
	root, err := FindRoot(startDir)
	if err != nil {
		return DefaultConfig(), nil
	}
	cfg, err := LoadConfig(filepath.Join(root, ConfigFileName))
	if errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

// ApplyEnv overrides cfg with TALLY_* variables read through getenv.
func (c *FileConfig) ApplyEnv(getenv func(string) string) error {
	if v := getenv("TALLY_DATA_DIR"); v != "" {
		c.DataDir = v
	}
	if v := getenv("TALLY_ADDR"); v != "" {
		c.Addr = v
	}
	if v := getenv("TALLY_STATIC_DIR"); v != "" {
		c.StaticDir = v
	}
	if v := getenv("TALLY_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	if v := getenv("TALLY_HEARTBEAT_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TALLY_HEARTBEAT_TIMEOUT %q: %w", v, err)
		}
		c.HeartbeatTimeout = n
	}
	if v := getenv("TALLY_AUTO_SHUTDOWN"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid TALLY_AUTO_SHUTDOWN %q: %w", v, err)
		}
		c.AutoShutdown = b
	}
	return c.Validate()
}

// Validate checks the values that cannot be defaulted.
func (c FileConfig) Validate() error {
	lo, hi := int(session.MinTimeout.Seconds()), int(session.MaxTimeout.Seconds())
	if c.HeartbeatTimeout < lo || c.HeartbeatTimeout > hi {
		return fmt.Errorf("heartbeat_timeout must be between %d and %d seconds, got %d", lo, hi, c.HeartbeatTimeout)
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Options converts the configuration into factory options.
func (c FileConfig) Options() []Option {
	opts := []Option{
		WithHeartbeatTimeout(time.Duration(c.HeartbeatTimeout) * time.Second),
		WithAutoShutdown(c.AutoShutdown),
	}
	if c.NonInteractive {
		opts = append(opts, WithNonInteractive(true))
	}
	return opts
}

// ParseLevel maps a log level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level
	if name == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(strings.ToUpper(name))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", name)
	}
	return level, nil
}
