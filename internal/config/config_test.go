package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 650*time.Millisecond, cfg.Settings.Debounce)
	assert.Equal(t, 1800*time.Millisecond, cfg.Settings.SuccessReset)
}

func TestLoadYAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inkcloud.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
storage:
  driver: sqlite
  dsn: /tmp/inkcloud.db
settings:
  debounce: 300ms
  rules_engine: cel
`), 0o600))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("INKCLOUD_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("INKCLOUD_ADDR", ":7070")
	t.Setenv("INKCLOUD_POLL_INTERVAL", "5s")
	t.Setenv("INKCLOUD_ACTIVITY_ENABLED", "false")
	t.Cleanup(func() { os.Unsetenv("INKCLOUD_LOG_LEVEL") })

	cfg, err := Load(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Storage.Driver)
	assert.Equal(t, "/tmp/inkcloud.db", cfg.Storage.DSN)
	assert.Equal(t, 300*time.Millisecond, cfg.Settings.Debounce)
	assert.Equal(t, 1800*time.Millisecond, cfg.Settings.SuccessReset)
	assert.Equal(t, 5*time.Second, cfg.Settings.PollInterval)
	assert.Equal(t, "cel", cfg.Settings.RulesEngine)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.False(t, cfg.Activity.Enabled)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	cfg, err := Load("", filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Driver)
}

func TestLoadMissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestApplyEnvRejectsBadDuration(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(func(key string) (string, bool) {
		if key == EnvPrefix+"DEBOUNCE" {
			return "soon", true
		}
		return "", false
	})
	assert.ErrorContains(t, err, "INKCLOUD_DEBOUNCE")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }, `storage.driver "postgres"`},
		{"sqlite without dsn", func(c *Config) { c.Storage.Driver = "sqlite" }, "storage.dsn is required"},
		{"unknown engine", func(c *Config) { c.Settings.RulesEngine = "lua" }, `rules_engine "lua"`},
		{"unknown format", func(c *Config) { c.Log.Format = "xml" }, `log.format "xml"`},
		{"zero debounce", func(c *Config) { c.Settings.Debounce = 0 }, "settings.debounce must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			assert.ErrorIs(t, err, ErrInvalid)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
