package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the relationship manager.
type Config struct {
	// Limits governs the daily action quota and pacing between actions.
	Limits LimitsConfig `yaml:"limits" json:"limits"`

	// Collector governs relationship list collection runs.
	Collector CollectorConfig `yaml:"collector" json:"collector"`

	// Storage holds database and diagnostic artifact locations.
	Storage StorageConfig `yaml:"storage" json:"storage"`

	// Engine holds scheduling settings for long-running operations.
	Engine EngineConfig `yaml:"engine" json:"engine"`

	// Logging configuration.
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LimitsConfig holds quota and pacing settings for destructive actions.
type LimitsConfig struct {
	// MaxDailyUnfollows caps successful unfollow actions per calendar day.
	MaxDailyUnfollows int `yaml:"max_daily_unfollows" json:"max_daily_unfollows"`
	// MinActionDelay and MaxActionDelay bound the randomized pause between
	// consecutive actions in a batch.
	MinActionDelay time.Duration `yaml:"min_action_delay" json:"min_action_delay"`
	MaxActionDelay time.Duration `yaml:"max_action_delay" json:"max_action_delay"`
	// Timezone is the fixed reference timezone for day boundaries. Quota
	// accounting must not float with the host timezone.
	Timezone string `yaml:"timezone" json:"timezone"`
}

// CollectorConfig holds collection run settings.
type CollectorConfig struct {
	// Cap is the default maximum number of entries per collection run.
	Cap int `yaml:"cap" json:"cap"`
	// MaxRounds is the safety valve against surface changes that would
	// otherwise loop forever.
	MaxRounds int `yaml:"max_rounds" json:"max_rounds"`
	// StallRounds is how many consecutive rounds without content growth
	// count as end of list.
	StallRounds int `yaml:"stall_rounds" json:"stall_rounds"`
	// MinRenderWait and MaxRenderWait bound the randomized pause after each
	// scroll while asynchronous content loads.
	MinRenderWait time.Duration `yaml:"min_render_wait" json:"min_render_wait"`
	MaxRenderWait time.Duration `yaml:"max_render_wait" json:"max_render_wait"`
	// RequestTimeout bounds every individual surface operation.
	RequestTimeout time.Duration `yaml:"request_timeout" json:"request_timeout"`
	// RequestsPerMinute paces platform API calls inside a run.
	RequestsPerMinute int `yaml:"requests_per_minute" json:"requests_per_minute"`
	// MaxRetries bounds transient fetch retries inside the surface.
	MaxRetries int `yaml:"max_retries" json:"max_retries"`
	// UserAgent sent with every platform request.
	UserAgent string `yaml:"user_agent" json:"user_agent"`
}

// StorageConfig holds persistence locations.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path" json:"database_path"`
	DiagnosticsDir string `yaml:"diagnostics_dir" json:"diagnostics_dir"`
}

// EngineConfig holds scheduling settings.
type EngineConfig struct {
	// Workers caps concurrent long-running jobs. Each worker owns a full
	// browsing context, so the pool is deliberately small.
	Workers int `yaml:"workers" json:"workers"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file" json:"file"`
}

// DefaultConfig returns a Config with the stock limits: 50 unfollows a day,
// 30-60s between actions, 500-entry collection cap.
func DefaultConfig() *Config {
	return &Config{
		Limits: LimitsConfig{
			MaxDailyUnfollows: 50,
			MinActionDelay:    30 * time.Second,
			MaxActionDelay:    60 * time.Second,
			Timezone:          "UTC",
		},
		Collector: CollectorConfig{
			Cap:               500,
			MaxRounds:         50,
			StallRounds:       2,
			MinRenderWait:     1500 * time.Millisecond,
			MaxRenderWait:     2500 * time.Millisecond,
			RequestTimeout:    30 * time.Second,
			RequestsPerMinute: 30,
			MaxRetries:        3,
			UserAgent:         "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		Storage: StorageConfig{
			DatabasePath:   "igmanager.db",
			DiagnosticsDir: "diagnostics",
		},
		Engine: EngineConfig{
			Workers: 3,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// environment overrides, in that order.
func Load(path string) (*Config, error) {
	// .env is optional; a missing file is not an error
	_ = godotenv.Load()

	cfg := DefaultConfig()
	if err := cfg.LoadFromFile(path); err != nil {
		return nil, err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a YAML file. An empty path falls
// back to the standard locations; finding none is not an error.
func (c *Config) LoadFromFile(path string) error {
	if path == "" {
		path = c.findConfigFile()
		if path == "" {
			return nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// findConfigFile searches standard locations in order of precedence.
func (c *Config) findConfigFile() string {
	locations := []string{
		".igmanager.yaml",
		".igmanager.yml",
		filepath.Join(os.Getenv("HOME"), ".config", "igmanager", "config.yaml"),
		filepath.Join(os.Getenv("HOME"), ".config", "igmanager", "config.yml"),
		filepath.Join(os.Getenv("HOME"), ".igmanager.yaml"),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}

	return ""
}

// LoadFromEnv applies environment variable overrides.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("IGMANAGER_MAX_DAILY_UNFOLLOWS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid IGMANAGER_MAX_DAILY_UNFOLLOWS: %w", err)
		}
		c.Limits.MaxDailyUnfollows = n
	}
	if v := os.Getenv("IGMANAGER_MIN_ACTION_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid IGMANAGER_MIN_ACTION_DELAY: %w", err)
		}
		c.Limits.MinActionDelay = d
	}
	if v := os.Getenv("IGMANAGER_MAX_ACTION_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid IGMANAGER_MAX_ACTION_DELAY: %w", err)
		}
		c.Limits.MaxActionDelay = d
	}
	if v := os.Getenv("IGMANAGER_TIMEZONE"); v != "" {
		c.Limits.Timezone = v
	}
	if v := os.Getenv("IGMANAGER_COLLECT_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid IGMANAGER_COLLECT_CAP: %w", err)
		}
		c.Collector.Cap = n
	}
	if v := os.Getenv("IGMANAGER_DATABASE_PATH"); v != "" {
		c.Storage.DatabasePath = v
	}
	if v := os.Getenv("IGMANAGER_DIAGNOSTICS_DIR"); v != "" {
		c.Storage.DiagnosticsDir = v
	}
	if v := os.Getenv("IGMANAGER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid IGMANAGER_WORKERS: %w", err)
		}
		c.Engine.Workers = n
	}
	if v := os.Getenv("IGMANAGER_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("IGMANAGER_USER_AGENT"); v != "" {
		c.Collector.UserAgent = v
	}
	return nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	var errs []error

	if c.Limits.MaxDailyUnfollows <= 0 {
		errs = append(errs, errors.New("max daily unfollows must be positive"))
	}
	if c.Limits.MinActionDelay < 0 {
		errs = append(errs, errors.New("min action delay cannot be negative"))
	}
	if c.Limits.MaxActionDelay < c.Limits.MinActionDelay {
		errs = append(errs, errors.New("max action delay must be >= min action delay"))
	}
	if _, err := time.LoadLocation(c.Limits.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid timezone %q: %w", c.Limits.Timezone, err))
	}

	if c.Collector.Cap <= 0 {
		errs = append(errs, errors.New("collector cap must be positive"))
	}
	if c.Collector.MaxRounds <= 0 {
		errs = append(errs, errors.New("collector max rounds must be positive"))
	}
	if c.Collector.StallRounds <= 0 {
		errs = append(errs, errors.New("collector stall rounds must be positive"))
	}
	if c.Collector.RequestTimeout <= 0 {
		errs = append(errs, errors.New("collector request timeout must be positive"))
	}

	if c.Storage.DatabasePath == "" {
		errs = append(errs, errors.New("database path is required"))
	}

	if c.Engine.Workers <= 0 {
		errs = append(errs, errors.New("engine workers must be positive"))
	}
	if c.Engine.Workers > 5 {
		// each worker owns a full browsing context
		errs = append(errs, errors.New("engine workers should not exceed 5"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	return nil
}

// Location resolves the configured reference timezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Limits.Timezone)
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
