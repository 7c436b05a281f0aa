package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"igmanager/pkg/reconcile"
)

var (
	analyzeExcludeVerified bool
	analyzeMaxFollowers    int
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [target]",
	Short: "Show who doesn't follow you back",
	Long: `Compute the non-follower set from the latest stored snapshots: accounts you
follow that don't follow you back, minus the allow-list.

This is a pure read over stored data; it makes no platform requests. If
either snapshot was truncated, the result is marked provisional.`,
	Example: `  # Analyze your own account
  igmanager analyze

  # Skip verified accounts and anyone with 10k+ followers
  igmanager analyze --exclude-verified --max-followers 10000`,
	Args: cobra.MaximumNArgs(1),
	Run:  runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolVar(&analyzeExcludeVerified, "exclude-verified", false, "exclude verified accounts from candidates")
	analyzeCmd.Flags().IntVar(&analyzeMaxFollowers, "max-followers", 0, "exclude accounts with at least this many followers")
}

func runAnalyze(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	eng := buildEngine(cfg)
	defer eng.Close()

	sess := resolveSession(eng)

	target := sess.Username
	if len(args) > 0 {
		target = strings.TrimSpace(args[0])
	}

	res, err := eng.Reconcile(target, reconcile.Filters{
		ExcludeVerified:  analyzeExcludeVerified,
		MaxFollowerCount: analyzeMaxFollowers,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
		fmt.Fprintln(os.Stderr, "\nRun 'igmanager sync' first to collect snapshots.")
		os.Exit(1)
	}

	fmt.Printf("Followers: %d   Following: %d\n\n", res.TotalFollowers, res.TotalFollowing)

	if res.Provisional {
		fmt.Println("Warning: at least one snapshot was truncated; results are provisional.")
		fmt.Println()
	}

	if len(res.Candidates) == 0 {
		fmt.Println("Everyone you follow follows you back.")
		return
	}

	fmt.Printf("%d accounts don't follow you back:\n\n", len(res.Candidates))
	for _, a := range res.Candidates {
		line := "  @" + a.Handle
		if a.FullName != "" {
			line += "  (" + a.FullName + ")"
		}
		if a.Verified {
			line += "  [verified]"
		}
		fmt.Println(line)
	}

	fmt.Println("\nProtect accounts with 'igmanager whitelist add', then run 'igmanager unfollow'.")
}
