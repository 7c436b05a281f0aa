package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var whitelistReason string

// whitelistCmd represents the whitelist command
var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Manage the allow-list of protected accounts",
	Long: `Manage the allow-list. Protected accounts never appear in candidate sets
and can never be part of an unfollow batch, regardless of selection.`,
}

var whitelistAddCmd = &cobra.Command{
	Use:   "add <handle>...",
	Short: "Protect one or more accounts",
	Example: `  igmanager whitelist add bestfriend
  igmanager whitelist add mom dad --reason family`,
	Args: cobra.MinimumNArgs(1),
	Run:  runWhitelistAdd,
}

var whitelistRemoveCmd = &cobra.Command{
	Use:   "remove <handle>...",
	Short: "Remove accounts from the allow-list",
	Args:  cobra.MinimumNArgs(1),
	Run:   runWhitelistRemove,
}

var whitelistListCmd = &cobra.Command{
	Use:   "list",
	Short: "Show all protected accounts",
	Run:   runWhitelistList,
}

func init() {
	rootCmd.AddCommand(whitelistCmd)
	whitelistCmd.AddCommand(whitelistAddCmd)
	whitelistCmd.AddCommand(whitelistRemoveCmd)
	whitelistCmd.AddCommand(whitelistListCmd)

	whitelistAddCmd.Flags().StringVar(&whitelistReason, "reason", "", "why these accounts are protected")
}

func runWhitelistAdd(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	eng := buildEngine(cfg)
	defer eng.Close()

	res, err := eng.Protect(args, whitelistReason)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to update allow-list: %v\n", err)
		os.Exit(1)
	}

	for _, h := range res.Added {
		fmt.Printf("Protected: @%s\n", h)
	}
	for _, h := range res.AlreadyPresent {
		fmt.Printf("Already protected: @%s\n", h)
	}
}

func runWhitelistRemove(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	eng := buildEngine(cfg)
	defer eng.Close()

	res, err := eng.Unprotect(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to update allow-list: %v\n", err)
		os.Exit(1)
	}

	for _, h := range res.Removed {
		fmt.Printf("Unprotected: @%s\n", h)
	}
	for _, h := range res.NotPresent {
		fmt.Printf("Was not protected: @%s\n", h)
	}
}

func runWhitelistList(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	eng := buildEngine(cfg)
	defer eng.Close()

	entries, err := eng.Protected()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read allow-list: %v\n", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Println("Allow-list is empty.")
		return
	}

	for _, e := range entries {
		line := "@" + e.Handle
		if e.Reason != "" {
			line += "  (" + e.Reason + ")"
		}
		fmt.Println(line)
	}
}
