package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	errs "igmanager/pkg/errors"
	"igmanager/pkg/reconcile"
)

var (
	unfollowLimit           int
	unfollowYes             bool
	unfollowDryRun          bool
	unfollowExcludeVerified bool
	unfollowMaxFollowers    int
	unfollowHandles         []string
)

// unfollowCmd represents the unfollow command
var unfollowCmd = &cobra.Command{
	Use:   "unfollow [target]",
	Short: "Unfollow accounts that don't follow you back",
	Long: `Unfollow non-followers in one paced, audited batch.

Candidates come from the latest stored snapshots unless explicit handles are
given with --user. The batch is checked wholesale against the daily quota
before anything runs: if it doesn't fit, it is rejected with the exact
remaining count. Actions run one at a time with a randomized 30-60 second
pause between them, and each attempt is written to the audit trail.

Interrupting with Ctrl-C stops at the next pause; actions already taken stay
recorded.`,
	Example: `  # Unfollow up to 10 non-followers after confirming
  igmanager unfollow --limit 10

  # Unfollow specific accounts
  igmanager unfollow --user someaccount --user otheraccount

  # See what would happen without doing anything
  igmanager unfollow --dry-run`,
	Args: cobra.MaximumNArgs(1),
	Run:  runUnfollow,
}

func init() {
	rootCmd.AddCommand(unfollowCmd)

	unfollowCmd.Flags().IntVar(&unfollowLimit, "limit", 0, "maximum accounts to unfollow in this batch")
	unfollowCmd.Flags().BoolVarP(&unfollowYes, "yes", "y", false, "skip the confirmation prompt")
	unfollowCmd.Flags().BoolVar(&unfollowDryRun, "dry-run", false, "show the batch without executing it")
	unfollowCmd.Flags().BoolVar(&unfollowExcludeVerified, "exclude-verified", false, "exclude verified accounts from candidates")
	unfollowCmd.Flags().IntVar(&unfollowMaxFollowers, "max-followers", 0, "exclude accounts with at least this many followers")
	unfollowCmd.Flags().StringArrayVar(&unfollowHandles, "user", nil, "explicit handle to unfollow (repeatable)")
}

func runUnfollow(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	eng := buildEngine(cfg)
	defer eng.Close()

	sess := resolveSession(eng)

	target := sess.Username
	if len(args) > 0 {
		target = strings.TrimSpace(args[0])
	}

	handles := unfollowHandles
	if len(handles) == 0 {
		res, err := eng.Reconcile(target, reconcile.Filters{
			ExcludeVerified:  unfollowExcludeVerified,
			MaxFollowerCount: unfollowMaxFollowers,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Candidate computation failed: %v\n", err)
			fmt.Fprintln(os.Stderr, "\nRun 'igmanager sync' first to collect snapshots.")
			os.Exit(1)
		}
		if res.Provisional {
			fmt.Println("Warning: snapshots were truncated; candidate set is provisional.")
		}
		for _, a := range res.Candidates {
			handles = append(handles, a.Handle)
		}
	}

	if unfollowLimit > 0 && len(handles) > unfollowLimit {
		handles = handles[:unfollowLimit]
	}

	if len(handles) == 0 {
		fmt.Println("Nothing to unfollow.")
		return
	}

	batch, err := eng.SubmitBatch(sess, handles)
	if err != nil {
		var engErr *errs.Error
		if errors.As(err, &engErr) && engErr.Kind == errs.KindQuotaExceeded {
			fmt.Fprintf(os.Stderr, "Batch rejected: %v\n", err)
			fmt.Fprintf(os.Stderr, "Retry with '--limit %d' or wait until tomorrow.\n", engErr.Remaining)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Batch rejected: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Batch of %d accounts:\n", len(batch.Items))
	for _, item := range batch.Items {
		fmt.Printf("  @%s\n", item.Handle)
	}

	if unfollowDryRun {
		fmt.Println("\nDry run, nothing executed.")
		return
	}

	if !unfollowYes {
		fmt.Printf("\nUnfollow these %d accounts? (y/N): ", len(batch.Items))
		reader := bufio.NewReader(os.Stdin)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			fmt.Println("Aborted.")
			return
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("\nRunning batch. Actions are paced 30-60s apart; this takes a while.")
	res := eng.RunBatch(ctx, sess, batch)

	fmt.Printf("\nDone: %d unfollowed, %d failed\n", res.Succeeded, res.Failed)
	for _, f := range res.Failures {
		fmt.Printf("  @%s: %s\n", f.Handle, f.Reason)
	}
	if res.Cancelled {
		fmt.Println("Batch was interrupted; remaining accounts were not touched.")
	}
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "Batch aborted: %v\n", res.Err)
		os.Exit(1)
	}
}
