package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"igmanager/pkg/models"
)

var (
	logsKind  string
	logsLimit int
)

// logsCmd represents the logs command
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show the action audit trail",
	Long: `Show recent entries from the audit trail, newest first. Every attempted
action is recorded with its outcome; the trail is append-only.`,
	Example: `  # Last 50 actions of any kind
  igmanager logs

  # Only unfollow attempts
  igmanager logs --kind unfollow --limit 100`,
	Run: runLogs,
}

func init() {
	rootCmd.AddCommand(logsCmd)

	logsCmd.Flags().StringVar(&logsKind, "kind", "", "filter by action kind (login, unfollow, collect_followers, ...)")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 50, "maximum entries to show")
}

func runLogs(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	eng := buildEngine(cfg)
	defer eng.Close()

	records, err := eng.Logs(models.ActionKind(logsKind), logsLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read audit trail: %v\n", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Println("No recorded actions.")
		return
	}

	for _, rec := range records {
		line := fmt.Sprintf("%s  %-18s %-8s",
			rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.Kind, rec.Outcome)
		if rec.Target != "" {
			line += "  @" + rec.Target
		}
		if reason, ok := rec.Detail["error"].(string); ok && reason != "" {
			line += "  (" + reason + ")"
		}
		fmt.Println(line)
	}
}
