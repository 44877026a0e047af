// Package storage implements persistence for the review pipeline: the
// relational store for repositories, reviews, usage counters and job state,
// and the vector store for indexed repository content.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	// import db drivers
	_ "github.com/lib/pq"

	"github.com/Abhijit1102/githawk/internal/core"
)

// ErrReviewTerminal is returned when a terminal status write finds the
// review already terminal. The first writer wins; later writers get this.
var ErrReviewTerminal = errors.New("review already has a terminal status")

// JobRecord is the persisted state of one orchestrated job.
type JobRecord struct {
	ID           string    `db:"id"`
	Kind         string    `db:"kind"`
	RepoFullName string    `db:"repo_full_name"`
	PRNumber     int       `db:"pr_number"`
	Status       string    `db:"status"`
	Error        string    `db:"error"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// ReviewStats summarizes persisted review outcomes for a user. The reviews
// table is the authoritative source for these counts.
type ReviewStats struct {
	Total     int `db:"total" json:"total"`
	Completed int `db:"completed" json:"completed"`
	Failed    int `db:"failed" json:"failed"`
	Pending   int `db:"pending" json:"pending"`
}

// Store defines the interface for all relational database operations.
type Store interface {
	CreateRepository(ctx context.Context, repo *core.Repository) error
	GetRepositoryByOwnerName(ctx context.Context, owner, name string) (*core.Repository, error)
	DeleteRepository(ctx context.Context, id int64) error

	GetUserTier(ctx context.Context, userID string) (core.Tier, error)
	GetCredential(ctx context.Context, userID string) (*core.Credential, error)

	CreateReview(ctx context.Context, review *core.Review) error
	SetReviewContent(ctx context.Context, id int64, title, url, body string) error
	MarkReviewCompleted(ctx context.Context, id int64) error
	MarkReviewFailed(ctx context.Context, id int64, message string) error
	ListReviewsForRepo(ctx context.Context, repositoryID int64, limit int) ([]core.Review, error)
	GetReviewStats(ctx context.Context, userID string) (*ReviewStats, error)

	GetUsage(ctx context.Context, userID string, repositoryID int64) (*core.UsageCounter, error)
	IncrementReviewCount(ctx context.Context, userID string, repositoryID int64) error
	GetRepositoryCount(ctx context.Context, userID string) (int, error)
	IncrementRepositoryCount(ctx context.Context, userID string) error
	DecrementRepositoryCount(ctx context.Context, userID string) error

	CreateJob(ctx context.Context, job *JobRecord) error
	UpdateJobStatus(ctx context.Context, jobID, status, errMsg string) error
	GetJobStep(ctx context.Context, jobID, stepName string) (json.RawMessage, bool, error)
	SaveJobStep(ctx context.Context, jobID, stepName string, result json.RawMessage) error
}

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a Postgres-backed Store.
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

func (s *postgresStore) CreateRepository(ctx context.Context, repo *core.Repository) error {
	query := `
		INSERT INTO repositories (github_id, owner, name, full_name, url, user_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, connected_at`
	row := s.db.QueryRowContext(ctx, query,
		repo.GitHubID, repo.Owner, repo.Name, repo.FullName, repo.URL, repo.UserID)
	return row.Scan(&repo.ID, &repo.ConnectedAt)
}

func (s *postgresStore) GetRepositoryByOwnerName(ctx context.Context, owner, name string) (*core.Repository, error) {
	var repo core.Repository
	query := `
		SELECT id, github_id, owner, name, full_name, url, user_id, connected_at
		FROM repositories
		WHERE owner = $1 AND name = $2`
	if err := s.db.GetContext(ctx, &repo, query, owner, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("repository %s/%s: %w", owner, name, core.ErrRepositoryNotFound)
		}
		return nil, err
	}
	return &repo, nil
}

func (s *postgresStore) DeleteRepository(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM repositories WHERE id = $1`, id)
	return err
}

func (s *postgresStore) GetUserTier(ctx context.Context, userID string) (core.Tier, error) {
	var tier core.Tier
	if err := s.db.GetContext(ctx, &tier, `SELECT tier FROM users WHERE id = $1`, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Unknown users get the most restrictive tier.
			return core.TierFree, nil
		}
		return "", err
	}
	return tier, nil
}

func (s *postgresStore) GetCredential(ctx context.Context, userID string) (*core.Credential, error) {
	var cred core.Credential
	query := `
		SELECT user_id, provider, access_token
		FROM credentials
		WHERE user_id = $1 AND provider = 'github'`
	if err := s.db.GetContext(ctx, &cred, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, core.ErrNoCredential)
		}
		return nil, err
	}
	return &cred, nil
}

func (s *postgresStore) CreateReview(ctx context.Context, review *core.Review) error {
	if review.Status == "" {
		review.Status = core.ReviewPending
	}
	query := `
		INSERT INTO reviews (repository_id, pr_number, pr_title, pr_url, body, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`
	row := s.db.QueryRowContext(ctx, query,
		review.RepositoryID, review.PRNumber, review.PRTitle, review.PRURL,
		review.Body, review.Status, review.Error)
	return row.Scan(&review.ID, &review.CreatedAt)
}

func (s *postgresStore) SetReviewContent(ctx context.Context, id int64, title, url, body string) error {
	query := `
		UPDATE reviews SET pr_title = $2, pr_url = $3, body = $4
		WHERE id = $1 AND status = 'PENDING'`
	_, err := s.db.ExecContext(ctx, query, id, title, url, body)
	return err
}

// markReviewTerminal flips a PENDING review to a terminal status. The WHERE
// clause guarantees at most one terminal write per record.
func (s *postgresStore) markReviewTerminal(ctx context.Context, id int64, status core.ReviewStatus, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE reviews SET status = $2, error = $3 WHERE id = $1 AND status = 'PENDING'`,
		id, status, message)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("review %d: %w", id, ErrReviewTerminal)
	}
	return nil
}

func (s *postgresStore) MarkReviewCompleted(ctx context.Context, id int64) error {
	return s.markReviewTerminal(ctx, id, core.ReviewCompleted, "")
}

func (s *postgresStore) MarkReviewFailed(ctx context.Context, id int64, message string) error {
	return s.markReviewTerminal(ctx, id, core.ReviewFailed, message)
}

func (s *postgresStore) ListReviewsForRepo(ctx context.Context, repositoryID int64, limit int) ([]core.Review, error) {
	if limit <= 0 {
		limit = 50
	}
	var reviews []core.Review
	query := `
		SELECT id, repository_id, pr_number, pr_title, pr_url, body, status, error, created_at
		FROM reviews
		WHERE repository_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	if err := s.db.SelectContext(ctx, &reviews, query, repositoryID, limit); err != nil {
		return nil, err
	}
	return reviews, nil
}

func (s *postgresStore) GetReviewStats(ctx context.Context, userID string) (*ReviewStats, error) {
	var stats ReviewStats
	query := `
		SELECT
			COUNT(*) AS total,
			COUNT(*) FILTER (WHERE r.status = 'COMPLETED') AS completed,
			COUNT(*) FILTER (WHERE r.status = 'FAILED') AS failed,
			COUNT(*) FILTER (WHERE r.status = 'PENDING') AS pending
		FROM reviews r
		JOIN repositories repo ON repo.id = r.repository_id
		WHERE repo.user_id = $1`
	if err := s.db.GetContext(ctx, &stats, query, userID); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (s *postgresStore) GetUsage(ctx context.Context, userID string, repositoryID int64) (*core.UsageCounter, error) {
	var counter core.UsageCounter
	query := `
		SELECT user_id, repository_id, review_count
		FROM usage_counters
		WHERE user_id = $1 AND repository_id = $2`
	if err := s.db.GetContext(ctx, &counter, query, userID, repositoryID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Absence means no usage yet.
			return &core.UsageCounter{UserID: userID, RepositoryID: repositoryID}, nil
		}
		return nil, err
	}
	return &counter, nil
}

// IncrementReviewCount performs a single-row atomic increment. Concurrent
// increments for the same key serialize on the row, never losing updates.
func (s *postgresStore) IncrementReviewCount(ctx context.Context, userID string, repositoryID int64) error {
	query := `
		INSERT INTO usage_counters (user_id, repository_id, review_count)
		VALUES ($1, $2, 1)
		ON CONFLICT (user_id, repository_id)
		DO UPDATE SET review_count = usage_counters.review_count + 1`
	_, err := s.db.ExecContext(ctx, query, userID, repositoryID)
	return err
}

func (s *postgresStore) GetRepositoryCount(ctx context.Context, userID string) (int, error) {
	var count int
	query := `SELECT repository_count FROM user_usage WHERE user_id = $1`
	if err := s.db.GetContext(ctx, &count, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return count, nil
}

func (s *postgresStore) IncrementRepositoryCount(ctx context.Context, userID string) error {
	query := `
		INSERT INTO user_usage (user_id, repository_count)
		VALUES ($1, 1)
		ON CONFLICT (user_id)
		DO UPDATE SET repository_count = user_usage.repository_count + 1`
	_, err := s.db.ExecContext(ctx, query, userID)
	return err
}

func (s *postgresStore) DecrementRepositoryCount(ctx context.Context, userID string) error {
	query := `
		UPDATE user_usage
		SET repository_count = GREATEST(repository_count - 1, 0)
		WHERE user_id = $1`
	_, err := s.db.ExecContext(ctx, query, userID)
	return err
}

func (s *postgresStore) CreateJob(ctx context.Context, job *JobRecord) error {
	query := `
		INSERT INTO jobs (id, kind, repo_full_name, pr_number, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at`
	row := s.db.QueryRowContext(ctx, query,
		job.ID, job.Kind, job.RepoFullName, job.PRNumber, job.Status)
	return row.Scan(&job.CreatedAt, &job.UpdatedAt)
}

func (s *postgresStore) UpdateJobStatus(ctx context.Context, jobID, status, errMsg string) error {
	query := `UPDATE jobs SET status = $2, error = $3, updated_at = now() WHERE id = $1`
	_, err := s.db.ExecContext(ctx, query, jobID, status, errMsg)
	return err
}

func (s *postgresStore) GetJobStep(ctx context.Context, jobID, stepName string) (json.RawMessage, bool, error) {
	var result json.RawMessage
	query := `SELECT result FROM job_steps WHERE job_id = $1 AND step_name = $2`
	if err := s.db.GetContext(ctx, &result, query, jobID, stepName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return result, true, nil
}

func (s *postgresStore) SaveJobStep(ctx context.Context, jobID, stepName string, result json.RawMessage) error {
	query := `
		INSERT INTO job_steps (job_id, step_name, result)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, step_name) DO UPDATE SET result = EXCLUDED.result`
	_, err := s.db.ExecContext(ctx, query, jobID, stepName, result)
	return err
}
