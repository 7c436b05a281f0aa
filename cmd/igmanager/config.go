package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"igmanager/pkg/config"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage igmanager configuration files.

Configuration can be loaded from:
  - Environment variables (IGMANAGER_*)
  - Configuration file
  - Default values (lowest priority)`,
}

// configInitCmd represents the config init command
var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file will be created in the current directory as 'igmanager.yaml'
unless a different path is specified with the --config flag.`,
	Run: runConfigInit,
}

// configShowCmd represents the config show command
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Run:   runConfigShow,
}

// configValidateCmd represents the config validate command
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration file",
	Long: `Validate a configuration file for syntax errors and invalid values.

This command checks:
  - YAML syntax
  - Value types and ranges
  - Path accessibility`,
	Run: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) {
	configPath := configFile
	if configPath == "" {
		configPath = "igmanager.yaml"
	}

	if _, err := os.Stat(configPath); err == nil {
		fmt.Fprintf(os.Stderr, "Configuration file already exists: %s\n", configPath)
		fmt.Println("\nTo overwrite, first remove the existing file:")
		fmt.Printf("  rm %s\n", configPath)
		os.Exit(1)
	}

	exampleConfig := `# igmanager Configuration File
#
# This file contains all available configuration options.
# You can also use environment variables prefixed with IGMANAGER_
# For example: IGMANAGER_MAX_DAILY_UNFOLLOWS, IGMANAGER_DATABASE_PATH

# Daily quota and action pacing
limits:
  # Maximum successful unfollows per calendar day
  # Range: 1-200
  max_daily_unfollows: 50

  # Randomized pause between consecutive unfollow actions
  min_action_delay: 30s
  max_action_delay: 60s

  # Fixed reference timezone for the daily quota boundary
  timezone: "UTC"

# List collection settings
collector:
  # Maximum entries collected per list
  cap: 500

  # Safety valve against endless collection loops
  max_rounds: 50

  # Consecutive rounds without growth that count as end of list
  stall_rounds: 2

  # Randomized wait after each round while content loads
  min_render_wait: 1500ms
  max_render_wait: 2500ms

  # Per-request timeout
  request_timeout: 30s

  # Platform API pacing within a collection run
  requests_per_minute: 30

  # Transient fetch retries
  max_retries: 3

# Storage locations
storage:
  # SQLite database holding accounts, snapshots and the audit trail
  database_path: "igmanager.db"

  # Directory for structural-failure diagnostic captures
  diagnostics_dir: "diagnostics"

# Background job scheduling
engine:
  # Concurrent long-running jobs; each owns a full browsing context
  workers: 3

# Logging configuration
logging:
  # Log level: debug, info, warn, error
  level: "info"

  # Log file path (optional)
  # Leave empty to log to stderr only
  file: ""
`

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create configuration file: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Configuration file created: " + configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("1. Adjust limits and storage paths if needed")
	fmt.Println("2. Run 'igmanager config validate' to check the configuration")
	fmt.Println("3. Store a session with 'igmanager auth login'")
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to format configuration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Current Configuration")
	fmt.Println()
	fmt.Print(string(data))

	fmt.Println("\nConfiguration sources (in order of priority):")
	fmt.Println("1. Environment variables (IGMANAGER_*)")
	if configFile != "" {
		fmt.Printf("2. Configuration file: %s\n", configFile)
	} else {
		fmt.Println("2. Configuration file: (not specified)")
	}
	fmt.Println("3. Default values")
}

func runConfigValidate(cmd *cobra.Command, args []string) {
	if configFile == "" {
		possiblePaths := []string{
			"igmanager.yaml",
			"igmanager.yml",
			".igmanager.yaml",
			".igmanager.yml",
			filepath.Join(os.Getenv("HOME"), ".igmanager.yaml"),
			filepath.Join(os.Getenv("HOME"), ".config", "igmanager", "config.yaml"),
		}

		for _, path := range possiblePaths {
			if _, err := os.Stat(path); err == nil {
				configFile = path
				break
			}
		}

		if configFile == "" {
			fmt.Fprintln(os.Stderr, "No configuration file found. Specify a file with --config.")
			os.Exit(1)
		}
	}

	fmt.Printf("Validating configuration: %s\n", configFile)

	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration validation failed: %v\n", err)
		os.Exit(1)
	}

	var problems []string

	if cfg.Storage.DiagnosticsDir != "" {
		if err := os.MkdirAll(cfg.Storage.DiagnosticsDir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create diagnostics directory: %v", err))
		}
	}
	if cfg.Logging.File != "" {
		dir := filepath.Dir(cfg.Logging.File)
		if err := os.MkdirAll(dir, 0755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		fmt.Fprintln(os.Stderr, "Configuration has errors:")
		for _, p := range problems {
			fmt.Fprintf(os.Stderr, "  - %s\n", p)
		}
		os.Exit(1)
	}

	fmt.Println("Configuration is valid")

	fmt.Println("\nConfiguration summary:")
	fmt.Printf("  Daily unfollow limit: %d\n", cfg.Limits.MaxDailyUnfollows)
	fmt.Printf("  Action delay: %s to %s\n", cfg.Limits.MinActionDelay, cfg.Limits.MaxActionDelay)
	fmt.Printf("  Collection cap: %d entries\n", cfg.Collector.Cap)
	fmt.Printf("  Database: %s\n", cfg.Storage.DatabasePath)
	fmt.Printf("  Log level: %s\n", cfg.Logging.Level)
}
