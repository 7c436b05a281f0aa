package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"igmanager/pkg/models"
	"igmanager/pkg/session"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage Instagram sessions",
	Long: `Manage stored Instagram sessions securely.

Sessions are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your cookies or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Validate and store an Instagram session",
	Long: `Validate browser cookies against Instagram and store the session securely.

You will be prompted for:
  - Instagram username (if not provided)
  - Session ID (from sessionid cookie)
  - CSRF Token (from csrftoken cookie)

To get these values:
1. Log into Instagram in your browser
2. Open Developer Tools (F12)
3. Go to Application/Storage > Cookies
4. Find and copy the sessionid and csrftoken values

The cookies are validated with a single profile request before anything is
stored. Nothing is persisted if validation fails.`,
	Example: `  # Interactive login
  igmanager auth login

  # Login with username
  igmanager auth login myusername`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout [username]",
	Short: "Deactivate and remove a stored session",
	Args:  cobra.MaximumNArgs(1),
	Run:   runLogout,
}

// authListCmd represents the auth list command
var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored sessions",
	Long:  `List all stored sessions with cookie values masked.`,
	Run:   runAuthList,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(logoutCmd)
	authCmd.AddCommand(authListCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	eng := buildEngine(cfg)
	defer eng.Close()

	var username string
	if len(args) > 0 {
		username = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if username == "" {
		fmt.Print("Instagram username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read username: %v\n", err)
			os.Exit(1)
		}
		username = strings.TrimSpace(input)
	}

	if username == "" {
		fmt.Fprintln(os.Stderr, "Username is required")
		os.Exit(1)
	}

	fmt.Println("\nEnter your cookie values (they will be hidden as you type):")
	fmt.Println()

	var sessionID string
	for {
		fmt.Print("sessionid cookie value: ")
		var err error
		sessionID, err = readPassword()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read session ID: %v\n", err)
			os.Exit(1)
		}

		if len(sessionID) < 20 || !strings.Contains(sessionID, "%") {
			fmt.Println("\nThat doesn't look like a valid sessionid.")
			fmt.Println("It should be a long string containing % symbols.")
			fmt.Print("\nTry again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				os.Exit(1)
			}
			continue
		}
		break
	}

	var csrfToken string
	for {
		fmt.Print("\ncsrftoken cookie value: ")
		var err error
		csrfToken, err = readPassword()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read CSRF token: %v\n", err)
			os.Exit(1)
		}

		if len(csrfToken) < 20 || len(csrfToken) > 50 {
			fmt.Println("\nThat doesn't look like a valid csrftoken.")
			fmt.Println("It should be around 32 characters long.")
			fmt.Print("\nTry again? (Y/n): ")
			retry, _ := reader.ReadString('\n')
			if strings.ToLower(strings.TrimSpace(retry)) == "n" {
				os.Exit(1)
			}
			continue
		}
		break
	}

	cookies := []models.Cookie{
		{Name: "sessionid", Value: sessionID, Domain: ".instagram.com"},
		{Name: "csrftoken", Value: csrfToken, Domain: ".instagram.com"},
	}

	fmt.Println("\nValidating session with Instagram...")
	sess, err := eng.Login(context.Background(), username, cookies)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Login failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nSession stored for %s\n", sess.Username)
	fmt.Println("\nNext steps:")
	fmt.Printf("  $ igmanager sync %s\n", username)
	fmt.Printf("  $ igmanager analyze %s\n", username)
}

func runLogout(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	eng := buildEngine(cfg)
	defer eng.Close()

	username := accountName
	if len(args) > 0 {
		username = args[0]
	}

	sess, err := eng.Resume(username)
	if err != nil {
		fmt.Fprintln(os.Stderr, "No stored session found")
		os.Exit(1)
	}

	if err := eng.Logout(sess); err != nil {
		fmt.Fprintf(os.Stderr, "Logout failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Session removed: %s\n", sess.Username)
}

func runAuthList(cmd *cobra.Command, args []string) {
	manager, err := session.NewManager()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize session manager: %v\n", err)
		os.Exit(1)
	}

	sessions, err := manager.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list sessions: %v\n", err)
		os.Exit(1)
	}

	if len(sessions) == 0 {
		fmt.Println("No stored sessions. Use 'igmanager auth login' to add one.")
		return
	}

	fmt.Println("Stored Sessions")
	fmt.Println()

	for i, sess := range sessions {
		sanitized := session.Sanitize(sess)
		fmt.Printf("%d. Username: %s\n", i+1, sanitized.Username)
		for _, c := range sanitized.Cookies {
			fmt.Printf("   %s: %s\n", c.Name, c.Value)
		}
		fmt.Printf("   Last Used: %s\n", sanitized.LastUsed.Format("2006-01-02 15:04:05"))
		fmt.Println()
	}
}

// readPassword reads a secret from stdin without echoing
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println() // New line after secret
		if err == nil {
			return string(secret), nil
		}
	}

	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
