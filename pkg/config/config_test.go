package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 50, cfg.Limits.MaxDailyUnfollows)
	assert.Equal(t, 30*time.Second, cfg.Limits.MinActionDelay)
	assert.Equal(t, 60*time.Second, cfg.Limits.MaxActionDelay)
	assert.Equal(t, "UTC", cfg.Limits.Timezone)
	assert.Equal(t, 500, cfg.Collector.Cap)
	assert.Equal(t, 3, cfg.Engine.Workers)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
limits:
  max_daily_unfollows: 25
  timezone: America/New_York
collector:
  cap: 1000
storage:
  database_path: /tmp/relationships.db
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, 25, cfg.Limits.MaxDailyUnfollows)
	assert.Equal(t, "America/New_York", cfg.Limits.Timezone)
	assert.Equal(t, 1000, cfg.Collector.Cap)
	assert.Equal(t, "/tmp/relationships.db", cfg.Storage.DatabasePath)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Untouched sections keep their defaults.
	assert.Equal(t, 30*time.Second, cfg.Limits.MinActionDelay)
	assert.Equal(t, 3, cfg.Engine.Workers)
}

func TestLoadFromFileMissing(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadFromFileInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("limits: ["), 0644))

	err := DefaultConfig().LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("IGMANAGER_MAX_DAILY_UNFOLLOWS", "10")
	t.Setenv("IGMANAGER_MIN_ACTION_DELAY", "45s")
	t.Setenv("IGMANAGER_MAX_ACTION_DELAY", "90s")
	t.Setenv("IGMANAGER_TIMEZONE", "Europe/Berlin")
	t.Setenv("IGMANAGER_COLLECT_CAP", "200")
	t.Setenv("IGMANAGER_WORKERS", "2")
	t.Setenv("IGMANAGER_LOG_LEVEL", "warn")

	cfg := DefaultConfig()
	require.NoError(t, cfg.LoadFromEnv())

	assert.Equal(t, 10, cfg.Limits.MaxDailyUnfollows)
	assert.Equal(t, 45*time.Second, cfg.Limits.MinActionDelay)
	assert.Equal(t, 90*time.Second, cfg.Limits.MaxActionDelay)
	assert.Equal(t, "Europe/Berlin", cfg.Limits.Timezone)
	assert.Equal(t, 200, cfg.Collector.Cap)
	assert.Equal(t, 2, cfg.Engine.Workers)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadFromEnvRejectsGarbage(t *testing.T) {
	t.Setenv("IGMANAGER_MAX_DAILY_UNFOLLOWS", "fifty")

	err := DefaultConfig().LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "IGMANAGER_MAX_DAILY_UNFOLLOWS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "zero daily limit",
			mutate:  func(c *Config) { c.Limits.MaxDailyUnfollows = 0 },
			wantErr: "max daily unfollows",
		},
		{
			name:    "inverted action delays",
			mutate:  func(c *Config) { c.Limits.MinActionDelay = time.Minute; c.Limits.MaxActionDelay = time.Second },
			wantErr: "max action delay",
		},
		{
			name:    "bogus timezone",
			mutate:  func(c *Config) { c.Limits.Timezone = "Mars/Olympus" },
			wantErr: "invalid timezone",
		},
		{
			name:    "zero cap",
			mutate:  func(c *Config) { c.Collector.Cap = 0 },
			wantErr: "collector cap",
		},
		{
			name:    "too many workers",
			mutate:  func(c *Config) { c.Engine.Workers = 10 },
			wantErr: "workers",
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Storage.DatabasePath = "" },
			wantErr: "database path",
		},
		{
			name:    "unknown log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Limits.Timezone = "America/New_York"

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", loc.String())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Limits.MaxDailyUnfollows = 17
	require.NoError(t, cfg.Save(path))

	loaded := DefaultConfig()
	require.NoError(t, loaded.LoadFromFile(path))
	assert.Equal(t, 17, loaded.Limits.MaxDailyUnfollows)
}
