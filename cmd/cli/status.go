package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Abhijit1102/githawk/internal/core"
	"github.com/Abhijit1102/githawk/internal/storage"
)

var (
	outputJSON  bool
	reviewLimit int
)

var reviewsCmd = &cobra.Command{
	Use:   "reviews [owner/repo]",
	Short: "List the most recent reviews for a connected repository",
	Args:  cobra.ExactArgs(1),
	RunE:  runReviews,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show review outcome totals across your repositories",
	RunE:  runStats,
}

func init() { //nolint:gochecknoinits // Cobra command registration
	reviewsCmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")
	reviewsCmd.Flags().IntVar(&reviewLimit, "limit", 20, "Maximum number of reviews to list")
	statsCmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(reviewsCmd)
	rootCmd.AddCommand(statsCmd)
}

func runReviews(_ *cobra.Command, args []string) error {
	owner, name, err := splitFullName(args[0])
	if err != nil {
		return err
	}

	client := newAPIClient(serverURL)
	var reviews []core.Review
	if err := client.get(fmt.Sprintf("/repositories/%s/%s/reviews?limit=%d", owner, name, reviewLimit), &reviews); err != nil {
		errorColor.Printf("✗ %v\n", err)
		return err
	}

	if outputJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(reviews)
	}

	if len(reviews) == 0 {
		dimColor.Printf("No reviews recorded for %s yet.\n", args[0])
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "PR\tSTATUS\tCREATED\tTITLE")
	for _, review := range reviews {
		fmt.Fprintf(w, "#%d\t%s\t%s\t%s\n",
			review.PRNumber,
			review.Status,
			review.CreatedAt.Format(time.RFC822),
			review.PRTitle,
		)
	}
	return w.Flush()
}

func runStats(_ *cobra.Command, _ []string) error {
	if err := requireUser(); err != nil {
		return err
	}

	client := newAPIClient(serverURL)
	var stats storage.ReviewStats
	if err := client.get("/users/"+userID+"/stats", &stats); err != nil {
		errorColor.Printf("✗ %v\n", err)
		return err
	}

	if outputJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(stats)
	}

	titleColor.Println("📊 Githawk - Review Stats")
	fmt.Printf("   Total:     %d\n", stats.Total)
	successColor.Printf("   Completed: %d\n", stats.Completed)
	errorColor.Printf("   Failed:    %d\n", stats.Failed)
	warnColor.Printf("   Pending:   %d\n", stats.Pending)
	return nil
}
