package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"igmanager/pkg/config"
	"igmanager/pkg/engine"
	"igmanager/pkg/logger"
	"igmanager/pkg/models"
	"igmanager/pkg/ratelimit"
	"igmanager/pkg/session"
	"igmanager/pkg/store"
	"igmanager/pkg/surface"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile  string
	logLevel    string
	accountName string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "igmanager",
	Short: "Audit and clean up your Instagram following list safely",
	Long: `igmanager collects your follower and following lists, works out who
doesn't follow you back, and unfollows them in small, paced, auditable
batches.

Features:
  - Secure session storage using system keychain
  - Snapshot-based follower/following collection with deduplication
  - Allow-list for accounts that must never be unfollowed
  - Daily unfollow quota with randomized pacing between actions
  - Full audit trail of every action in a local SQLite database

Start with 'igmanager auth login', then 'igmanager sync' and 'igmanager analyze'.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default is $HOME/.igmanager.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&accountName, "account", "a", "", "use specific stored account")

	rootCmd.SetVersionTemplate(`igmanager {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// loadConfig builds the effective configuration from file, env and flags.
func loadConfig() *config.Config {
	cfg, err := config.Load(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := logger.Initialize(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// buildEngine wires the full engine stack. The caller owns Close.
func buildEngine(cfg *config.Config) *engine.Engine {
	db, err := store.Setup(cfg.Storage.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}

	vault, err := session.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize session manager: %v\n", err)
		os.Exit(1)
	}

	provider := surface.NewInstagram(surface.InstagramOptions{
		UserAgent:      cfg.Collector.UserAgent,
		RequestTimeout: cfg.Collector.RequestTimeout,
		MaxRetries:     cfg.Collector.MaxRetries,
		Limiter:        ratelimit.NewTokenBucket(cfg.Collector.RequestsPerMinute, time.Minute),
		Logger:         logger.GetLogger(),
	})

	eng, err := engine.New(cfg, db, vault, provider, logger.GetLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize engine: %v\n", err)
		os.Exit(1)
	}
	return eng
}

// resolveSession loads the stored session selected by --account, or the
// default one.
func resolveSession(eng *engine.Engine) *models.Session {
	sess, err := eng.Resume(accountName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "No stored session found.")
		fmt.Fprintln(os.Stderr, "\nTo store a session, run:")
		fmt.Fprintln(os.Stderr, "  igmanager auth login")
		fmt.Fprintln(os.Stderr, "\nOr set environment variables:")
		fmt.Fprintln(os.Stderr, "  export IGMANAGER_SESSION_ID=your_session_id")
		fmt.Fprintln(os.Stderr, "  export IGMANAGER_CSRF_TOKEN=your_csrf_token")
		os.Exit(1)
	}
	return sess
}
