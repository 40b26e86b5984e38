package platform_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/tally/internal/platform"
)

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults For Missing Keys", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, platform.ConfigFileName)
		require.NoError(t, os.WriteFile(path, []byte("addr: 127.0.0.1:4000\ndata_dir: data\n"), 0644))

		cfg, err := platform.LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:4000", cfg.Addr)
		assert.Equal(t, filepath.Join(dir, "data"), cfg.DataDir)
		assert.Equal(t, 15, cfg.HeartbeatTimeout)
		assert.True(t, cfg.AutoShutdown)
		assert.True(t, cfg.Watch)
	})

	t.Run("Explicit False", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), platform.ConfigFileName)
		require.NoError(t, os.WriteFile(path, []byte("auto_shutdown: false\nwatch: false\nheartbeat_timeout: 60\n"), 0644))

		cfg, err := platform.LoadConfig(path)
		require.NoError(t, err)
		assert.False(t, cfg.AutoShutdown)
		assert.False(t, cfg.Watch)
		assert.Equal(t, 60, cfg.HeartbeatTimeout)
	})

	t.Run("Rejects Out Of Range Timeout", func(t *testing.T) {
		for _, value := range []string{"0", "-5", "86401"} {
			path := filepath.Join(t.TempDir(), platform.ConfigFileName)
			require.NoError(t, os.WriteFile(path, []byte("heartbeat_timeout: "+value+"\n"), 0644))

			_, err := platform.LoadConfig(path)
			assert.Error(t, err, value)
		}
	})

	t.Run("Rejects Malformed YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), platform.ConfigFileName)
		require.NoError(t, os.WriteFile(path, []byte("addr: [unclosed\n"), 0644))

		_, err := platform.LoadConfig(path)
		assert.Error(t, err)
	})
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "web", "src")
	require.NoError(t, os.MkdirAll(nested, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, platform.ConfigFileName), []byte("static_dir: web/dist\n"), 0644))

	cfg, err := platform.Discover(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "web", "dist"), cfg.StaticDir)
	assert.Equal(t, platform.DefaultAddr, cfg.Addr)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TALLY_ADDR":              "127.0.0.1:9000",
		"TALLY_HEARTBEAT_TIMEOUT": "30",
		"TALLY_AUTO_SHUTDOWN":     "false",
		"TALLY_LOG_LEVEL":         "debug",
	}
	getenv := func(k string) string { return env[k] }

	cfg := platform.DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(getenv))
	assert.Equal(t, "127.0.0.1:9000", cfg.Addr)
	assert.Equal(t, 30, cfg.HeartbeatTimeout)
	assert.False(t, cfg.AutoShutdown)

	level, err := platform.ParseLevel(cfg.LogLevel)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	env["TALLY_HEARTBEAT_TIMEOUT"] = "soon"
	cfg = platform.DefaultConfig()
	assert.Error(t, cfg.ApplyEnv(getenv))

	env["TALLY_HEARTBEAT_TIMEOUT"] = "-5"
	cfg = platform.DefaultConfig()
	assert.Error(t, cfg.ApplyEnv(getenv))
}
