package core

import "time"

// ReviewStatus tracks a review through its lifecycle. A review is created
// PENDING and moves exactly once to COMPLETED or FAILED.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "PENDING"
	ReviewCompleted ReviewStatus = "COMPLETED"
	ReviewFailed    ReviewStatus = "FAILED"
)

// Tier is a user's subscription level. FREE users are bounded by usage
// quotas; PRO users are not.
type Tier string

const (
	TierFree Tier = "FREE"
	TierPro  Tier = "PRO"
)

// Repository is a source repository connected for automated reviews.
type Repository struct {
	ID          int64     `db:"id" json:"id"`
	GitHubID    int64     `db:"github_id" json:"githubId"`
	Owner       string    `db:"owner" json:"owner"`
	Name        string    `db:"name" json:"name"`
	FullName    string    `db:"full_name" json:"fullName"`
	URL         string    `db:"url" json:"url"`
	UserID      string    `db:"user_id" json:"userId"`
	ConnectedAt time.Time `db:"connected_at" json:"connectedAt"`
}

// Review is one generated review for one pull request head. Body holds the
// generated markdown once the pipeline produces it.
type Review struct {
	ID           int64        `db:"id" json:"id"`
	RepositoryID int64        `db:"repository_id" json:"repositoryId"`
	PRNumber     int          `db:"pr_number" json:"prNumber"`
	PRTitle      string       `db:"pr_title" json:"prTitle"`
	PRURL        string       `db:"pr_url" json:"prUrl"`
	Body         string       `db:"body" json:"body,omitempty"`
	Status       ReviewStatus `db:"status" json:"status"`
	Error        string       `db:"error" json:"error,omitempty"`
	CreatedAt    time.Time    `db:"created_at" json:"createdAt"`
}

// UsageCounter is the lifetime review count for one user and repository.
// The count reflects review attempts, not completions.
type UsageCounter struct {
	UserID       string `db:"user_id" json:"userId"`
	RepositoryID int64  `db:"repository_id" json:"repositoryId"`
	ReviewCount  int    `db:"review_count" json:"reviewCount"`
}

// Credential is a user's stored host access token.
type Credential struct {
	UserID      string `db:"user_id" json:"userId"`
	Provider    string `db:"provider" json:"provider"`
	AccessToken string `db:"access_token" json:"-"`
}

// PullRequestDiff carries the unified diff of a pull request together with
// the metadata the review prompt needs.
type PullRequestDiff struct {
	Diff        string `json:"diff"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// RepoFile is one text file fetched from a repository for indexing.
type RepoFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// ContextChunk is one retrieved slice of indexed repository content used to
// ground a review.
type ContextChunk struct {
	FilePath string  `json:"filePath"`
	Content  string  `json:"content"`
	Score    float64 `json:"score,omitempty"`
}
