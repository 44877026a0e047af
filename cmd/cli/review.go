package main

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/spf13/cobra"
)

var prURLPattern = regexp.MustCompile(`^https://github\.com/([^/]+)/([^/]+)/pull/(\d+)$`)

var reviewCmd = &cobra.Command{
	Use:   "review [pr-url]",
	Short: "Queue an AI review for a GitHub Pull Request",
	Long: `Queue an AI review for a GitHub Pull Request.

The review runs asynchronously on the server: it fetches the PR diff, builds
context from the repository's vector index and posts the generated review as
a PR comment.

Examples:
  githawk-cli review https://github.com/owner/repo/pull/123`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	rootCmd.AddCommand(reviewCmd)
}

func parsePullRequestURL(prURL string) (string, string, int, error) {
	m := prURLPattern.FindStringSubmatch(prURL)
	if m == nil {
		return "", "", 0, fmt.Errorf("invalid PR URL %q\n\nExpected format: https://github.com/owner/repo/pull/123", prURL)
	}
	prNumber, err := strconv.Atoi(m[3])
	if err != nil || prNumber <= 0 {
		return "", "", 0, fmt.Errorf("invalid pull request number in %q", prURL)
	}
	return m[1], m[2], prNumber, nil
}

func runReview(_ *cobra.Command, args []string) error {
	owner, name, prNumber, err := parsePullRequestURL(args[0])
	if err != nil {
		return err
	}

	titleColor.Println("🚀 Githawk - PR Review")
	dimColor.Printf("   Target: %s\n\n", args[0])

	client := newAPIClient(serverURL)
	err = client.post("/reviews", map[string]any{
		"userId":   userID,
		"owner":    owner,
		"name":     name,
		"prNumber": prNumber,
	}, nil)
	if err != nil {
		errorColor.Printf("✗ %v\n", err)
		return err
	}

	successColor.Printf("✓ Review queued for %s/%s#%d\n", owner, name, prNumber)
	dimColor.Println("   The result will be posted as a comment on the pull request.")
	return nil
}
