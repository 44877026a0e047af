package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Abhijit1102/githawk/internal/core"
)

var connectCmd = &cobra.Command{
	Use:   "connect [owner/repo]",
	Short: "Connect a repository for automated pull request reviews",
	Long: `Connect a repository for automated pull request reviews.

Connecting installs a pull_request webhook on the repository and queues an
initial indexing run of its default branch.

Examples:
  githawk-cli connect --user u-123 octocat/hello-world`,
	Args: cobra.ExactArgs(1),
	RunE: runConnect,
}

var disconnectCmd = &cobra.Command{
	Use:   "disconnect [owner/repo]",
	Short: "Disconnect a repository and remove its webhook and index",
	Args:  cobra.ExactArgs(1),
	RunE:  runDisconnect,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(disconnectCmd)
}

func splitFullName(fullName string) (string, string, error) {
	parts := strings.Split(fullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/repo", fullName)
	}
	return parts[0], parts[1], nil
}

func requireUser() error {
	if userID == "" {
		return fmt.Errorf("--user is required\n\nTip: Set GITHAWK_USER_ID or pass --user")
	}
	return nil
}

func runConnect(_ *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	owner, name, err := splitFullName(args[0])
	if err != nil {
		return err
	}

	titleColor.Println("🔗 Githawk - Connect Repository")
	dimColor.Printf("   Target: %s\n\n", args[0])

	client := newAPIClient(serverURL)
	var repo core.Repository
	err = client.post("/repositories", map[string]any{
		"userId": userID,
		"owner":  owner,
		"name":   name,
	}, &repo)
	if err != nil {
		errorColor.Printf("✗ %v\n", err)
		return err
	}

	successColor.Printf("✓ Connected %s\n", repo.FullName)
	dimColor.Println("   Initial indexing has been queued and runs in the background.")
	return nil
}

func runDisconnect(_ *cobra.Command, args []string) error {
	if err := requireUser(); err != nil {
		return err
	}
	owner, name, err := splitFullName(args[0])
	if err != nil {
		return err
	}

	client := newAPIClient(serverURL)
	if err := client.delete(fmt.Sprintf("/repositories/%s/%s?userId=%s", owner, name, userID), nil); err != nil {
		errorColor.Printf("✗ %v\n", err)
		return err
	}

	successColor.Printf("✓ Disconnected %s/%s\n", owner, name)
	return nil
}
