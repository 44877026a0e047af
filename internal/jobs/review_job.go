package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Abhijit1102/githawk/internal/core"
	"github.com/Abhijit1102/githawk/internal/githost"
	"github.com/Abhijit1102/githawk/internal/llm"
	"github.com/Abhijit1102/githawk/internal/storage"
)

// ReviewStore is the relational state the review job touches.
type ReviewStore interface {
	StepStore
	GetRepositoryByOwnerName(ctx context.Context, owner, name string) (*core.Repository, error)
	GetCredential(ctx context.Context, userID string) (*core.Credential, error)
	CreateReview(ctx context.Context, review *core.Review) error
	SetReviewContent(ctx context.Context, id int64, title, url, body string) error
	MarkReviewCompleted(ctx context.Context, id int64) error
	MarkReviewFailed(ctx context.Context, id int64, message string) error
}

// QuotaGate is the slice of the quota layer the review job needs.
type QuotaGate interface {
	CanCreateReview(ctx context.Context, userID string, repositoryID int64) (bool, error)
	IncrementReviewCount(ctx context.Context, userID string, repositoryID int64) error
}

// ReviewGenerator produces review text from a diff and retrieved context.
type ReviewGenerator interface {
	GenerateReview(ctx context.Context, in llm.ReviewInput) (string, error)
}

// ContextRetriever assembles grounding context for a diff from the
// repository's vector index.
type ContextRetriever interface {
	BuildContext(ctx context.Context, repoFullName, diffText string) []core.ContextChunk
}

// ReviewJob handles pr.review.requested events: it runs the full pipeline
// from quota check to published comment, one durable step at a time.
type ReviewJob struct {
	store     ReviewStore
	gate      QuotaGate
	retriever ContextRetriever
	generator ReviewGenerator
	newClient githost.ClientFactory
	policy    RetryPolicy
	logger    *slog.Logger
}

// NewReviewJob creates the review job.
func NewReviewJob(
	store ReviewStore,
	gate QuotaGate,
	retriever ContextRetriever,
	generator ReviewGenerator,
	newClient githost.ClientFactory,
	policy RetryPolicy,
	logger *slog.Logger,
) core.Job {
	if store == nil || gate == nil || retriever == nil || generator == nil || newClient == nil || logger == nil {
		panic("review job dependencies cannot be nil")
	}
	return &ReviewJob{
		store:     store,
		gate:      gate,
		retriever: retriever,
		generator: generator,
		newClient: newClient,
		policy:    policy,
		logger:    logger,
	}
}

// Run drives the review chain. The Review row is created PENDING up front
// so a denied or failed run still leaves an inspectable record; it moves to
// a terminal status exactly once.
func (j *ReviewJob) Run(ctx context.Context, event *core.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("input validation failed: %w", err)
	}

	// Precondition: reviews only run for connected repositories.
	repo, err := j.store.GetRepositoryByOwnerName(ctx, event.Owner, event.Repo)
	if err != nil {
		j.logger.Error("review requested for unknown repository", "repo", event.FullName(), "error", err)
		return err
	}

	record := &storage.JobRecord{
		ID:           uuid.NewString(),
		Kind:         string(core.EventPRReviewRequested),
		RepoFullName: event.FullName(),
		PRNumber:     event.PRNumber,
		Status:       JobRunning,
	}
	if err := j.store.CreateJob(ctx, record); err != nil {
		return fmt.Errorf("failed to create job record: %w", err)
	}

	j.logger.Info("starting review job", "job", record.ID, "repo", event.FullName(), "pr", event.PRNumber)
	runner := NewRunner(record.ID, j.store, j.policy, j.logger)
	prURL := fmt.Sprintf("https://github.com/%s/%s/pull/%d", event.Owner, event.Repo, event.PRNumber)

	reviewID, err := RunStep(ctx, runner, "create-review", func(ctx context.Context) (int64, error) {
		review := &core.Review{
			RepositoryID: repo.ID,
			PRNumber:     event.PRNumber,
			PRURL:        prURL,
			Status:       core.ReviewPending,
		}
		if err := j.store.CreateReview(ctx, review); err != nil {
			return 0, err
		}
		return review.ID, nil
	})
	if err != nil {
		return j.fail(ctx, record.ID, 0, event, err)
	}

	token, err := RunStep(ctx, runner, "fetch-token", func(ctx context.Context) (string, error) {
		cred, err := j.store.GetCredential(ctx, event.UserID)
		if err != nil {
			return "", err
		}
		return cred.AccessToken, nil
	})
	if err != nil {
		return j.fail(ctx, record.ID, reviewID, event, err)
	}

	allowed, err := RunStep(ctx, runner, "check-quota", func(ctx context.Context) (bool, error) {
		return j.gate.CanCreateReview(ctx, event.UserID, repo.ID)
	})
	if err != nil {
		return j.fail(ctx, record.ID, reviewID, event, err)
	}
	if !allowed {
		// Denial consumes nothing and runs nothing downstream.
		return j.fail(ctx, record.ID, reviewID, event, core.ErrQuotaExceeded)
	}

	// Usage counts attempts, consumed at the moment the quota check passes.
	// The step memo keeps a retried job from double-counting.
	if _, err := RunStep(ctx, runner, "increment-usage", func(ctx context.Context) (bool, error) {
		if err := j.gate.IncrementReviewCount(ctx, event.UserID, repo.ID); err != nil {
			return false, err
		}
		return true, nil
	}); err != nil {
		return j.fail(ctx, record.ID, reviewID, event, err)
	}

	client := j.newClient(ctx, token)

	repoCfg, err := RunStep(ctx, runner, "fetch-repo-config", func(ctx context.Context) (*core.RepoConfig, error) {
		return loadRepoConfig(ctx, client, event.Owner, event.Repo, j.logger)
	})
	if err != nil {
		return j.fail(ctx, record.ID, reviewID, event, err)
	}

	diff, err := RunStep(ctx, runner, "fetch-diff", func(ctx context.Context) (*core.PullRequestDiff, error) {
		return client.GetPullRequestDiff(ctx, event.Owner, event.Repo, event.PRNumber)
	})
	if err != nil {
		return j.fail(ctx, record.ID, reviewID, event, err)
	}

	chunks, err := RunStep(ctx, runner, "build-context", func(ctx context.Context) ([]core.ContextChunk, error) {
		return j.retriever.BuildContext(ctx, event.FullName(), diff.Diff), nil
	})
	if err != nil {
		return j.fail(ctx, record.ID, reviewID, event, err)
	}

	body, err := RunStep(ctx, runner, "generate-review", func(ctx context.Context) (string, error) {
		return j.generator.GenerateReview(ctx, llm.ReviewInput{
			Title:              diff.Title,
			Description:        diff.Description,
			Diff:               diff.Diff,
			ContextChunks:      chunks,
			CustomInstructions: repoCfg.CustomInstructions,
		})
	})
	if err != nil {
		return j.fail(ctx, record.ID, reviewID, event, err)
	}

	if _, err := RunStep(ctx, runner, "persist-review", func(ctx context.Context) (bool, error) {
		if err := j.store.SetReviewContent(ctx, reviewID, diff.Title, prURL, body); err != nil {
			return false, err
		}
		return true, nil
	}); err != nil {
		return j.fail(ctx, record.ID, reviewID, event, err)
	}

	if _, err := RunStep(ctx, runner, "publish-comment", func(ctx context.Context) (bool, error) {
		if err := client.PostComment(ctx, event.Owner, event.Repo, event.PRNumber, formatComment(body)); err != nil {
			return false, err
		}
		return true, nil
	}); err != nil {
		return j.fail(ctx, record.ID, reviewID, event, err)
	}

	if err := j.store.MarkReviewCompleted(ctx, reviewID); err != nil && !errors.Is(err, storage.ErrReviewTerminal) {
		j.logger.Error("failed to mark review completed", "job", record.ID, "review", reviewID, "error", err)
	}
	if err := j.store.UpdateJobStatus(ctx, record.ID, JobCompleted, ""); err != nil {
		j.logger.Error("failed to mark job completed", "job", record.ID, "error", err)
	}
	j.logger.Info("review job completed", "job", record.ID, "repo", event.FullName(), "pr", event.PRNumber, "review", reviewID)
	return nil
}

// fail records the terminal failure on both the job and, when one was
// created, the review. The review write tolerates a lost race with another
// terminal writer.
func (j *ReviewJob) fail(ctx context.Context, jobID string, reviewID int64, event *core.Event, err error) error {
	j.logger.Error("review job failed", "job", jobID, "repo", event.FullName(), "pr", event.PRNumber, "error", err)
	if reviewID != 0 {
		if mErr := j.store.MarkReviewFailed(ctx, reviewID, err.Error()); mErr != nil && !errors.Is(mErr, storage.ErrReviewTerminal) {
			j.logger.Error("failed to mark review failed", "job", jobID, "review", reviewID, "error", mErr)
		}
	}
	if uErr := j.store.UpdateJobStatus(ctx, jobID, JobFailed, err.Error()); uErr != nil {
		j.logger.Error("failed to mark job failed", "job", jobID, "error", uErr)
	}
	return err
}

// formatComment wraps the generated review in the comment shell posted to
// the pull request.
func formatComment(body string) string {
	return "## 🤖 AI Code Review\n\n" + body + "\n\n---\n*powered by **Githawk***"
}
