package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"igmanager/pkg/models"
)

var (
	syncFollowersOnly bool
	syncFollowingOnly bool
	syncCap           int
)

// syncCmd represents the sync command
var syncCmd = &cobra.Command{
	Use:   "sync [target]",
	Short: "Collect follower and following snapshots",
	Long: `Collect the follower and following lists for a profile and store them as
snapshots. Entries are deduplicated in first-seen order; collection stops at
the end of the list, at the entry cap, or after the maximum number of rounds.

The target defaults to the logged-in account. Interrupting with Ctrl-C stops
cleanly at the next pacing point.`,
	Example: `  # Sync both lists for your own account
  igmanager sync

  # Sync only the followers of a profile
  igmanager sync someprofile --followers

  # Sync with a higher entry cap
  igmanager sync --cap 2000`,
	Args: cobra.MaximumNArgs(1),
	Run:  runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)

	syncCmd.Flags().BoolVar(&syncFollowersOnly, "followers", false, "collect only the followers list")
	syncCmd.Flags().BoolVar(&syncFollowingOnly, "following", false, "collect only the following list")
	syncCmd.Flags().IntVar(&syncCap, "cap", 0, "maximum entries per list (default from config)")
}

func runSync(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if syncCap > 0 {
		cfg.Collector.Cap = syncCap
	}
	eng := buildEngine(cfg)
	defer eng.Close()

	sess := resolveSession(eng)

	target := sess.Username
	if len(args) > 0 {
		target = strings.TrimSpace(args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	kinds := []models.ListKind{models.ListFollowers, models.ListFollowing}
	if syncFollowersOnly && !syncFollowingOnly {
		kinds = []models.ListKind{models.ListFollowers}
	} else if syncFollowingOnly && !syncFollowersOnly {
		kinds = []models.ListKind{models.ListFollowing}
	}

	for _, kind := range kinds {
		fmt.Printf("Collecting %s of %s...\n", kind, target)
		snap, err := eng.Collect(ctx, sess, target, kind)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Collection failed: %v\n", err)
			os.Exit(1)
		}
		state := "complete"
		if !snap.Complete {
			state = "truncated"
		}
		fmt.Printf("  %d entries in %d rounds (%s)\n", len(snap.Accounts), snap.Rounds, state)
	}

	fmt.Println("\nDone. Run 'igmanager analyze' to see who doesn't follow back.")
}
