package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show account totals and today's quota usage",
	Run:   runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	eng := buildEngine(cfg)
	defer eng.Close()

	stats, err := eng.Stats()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to compute stats: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Accounts seen:      %d\n", stats.TotalAccounts)
	fmt.Printf("Followers:          %d\n", stats.TotalFollowers)
	fmt.Printf("Following:          %d\n", stats.TotalFollowing)
	fmt.Printf("Non-followers:      %d\n", stats.NonFollowers)
	fmt.Println()
	fmt.Printf("Unfollows today:    %d of %d (%d remaining)\n",
		stats.TodayUnfollows, stats.DailyLimit, stats.RemainingToday)
}
