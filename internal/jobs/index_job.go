package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/Abhijit1102/githawk/internal/config"
	"github.com/Abhijit1102/githawk/internal/core"
	"github.com/Abhijit1102/githawk/internal/githost"
	"github.com/Abhijit1102/githawk/internal/indexer"
	"github.com/Abhijit1102/githawk/internal/storage"
)

// IndexStore is the relational state the indexing job touches.
type IndexStore interface {
	StepStore
	GetCredential(ctx context.Context, userID string) (*core.Credential, error)
}

// IndexJob handles repository.connected events: it fetches the repository's
// files from the host and indexes them into the vector store.
type IndexJob struct {
	store     IndexStore
	indexer   *indexer.Indexer
	newClient githost.ClientFactory
	policy    RetryPolicy
	logger    *slog.Logger
}

// NewIndexJob creates the indexing job.
func NewIndexJob(store IndexStore, ix *indexer.Indexer, newClient githost.ClientFactory, policy RetryPolicy, logger *slog.Logger) core.Job {
	if store == nil || ix == nil || newClient == nil || logger == nil {
		panic("index job dependencies cannot be nil")
	}
	return &IndexJob{store: store, indexer: ix, newClient: newClient, policy: policy, logger: logger}
}

// Run drives the indexing chain: fetch-token → fetch-repo-config →
// fetch-files → index-codebase. A repository with zero indexable files
// completes successfully with nothing to index.
func (j *IndexJob) Run(ctx context.Context, event *core.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("input validation failed: %w", err)
	}

	record := &storage.JobRecord{
		ID:           uuid.NewString(),
		Kind:         string(core.EventRepositoryConnected),
		RepoFullName: event.FullName(),
		Status:       JobRunning,
	}
	if err := j.store.CreateJob(ctx, record); err != nil {
		return fmt.Errorf("failed to create job record: %w", err)
	}

	j.logger.Info("starting indexing job", "job", record.ID, "repo", event.FullName())
	runner := NewRunner(record.ID, j.store, j.policy, j.logger)

	token, err := RunStep(ctx, runner, "fetch-token", func(ctx context.Context) (string, error) {
		cred, err := j.store.GetCredential(ctx, event.UserID)
		if err != nil {
			return "", err
		}
		return cred.AccessToken, nil
	})
	if err != nil {
		return j.fail(ctx, record.ID, event, err)
	}

	client := j.newClient(ctx, token)

	repoCfg, err := RunStep(ctx, runner, "fetch-repo-config", func(ctx context.Context) (*core.RepoConfig, error) {
		return loadRepoConfig(ctx, client, event.Owner, event.Repo, j.logger)
	})
	if err != nil {
		return j.fail(ctx, record.ID, event, err)
	}

	files, err := RunStep(ctx, runner, "fetch-files", func(ctx context.Context) ([]core.RepoFile, error) {
		return client.ListRepositoryFiles(ctx, event.Owner, event.Repo, repoCfg)
	})
	if err != nil {
		return j.fail(ctx, record.ID, event, err)
	}

	if len(files) == 0 {
		j.logger.Info("no files found to index", "job", record.ID, "repo", event.FullName())
		if err := j.store.UpdateJobStatus(ctx, record.ID, JobCompleted, ""); err != nil {
			j.logger.Error("failed to mark job completed", "job", record.ID, "error", err)
		}
		return nil
	}

	indexed, err := RunStep(ctx, runner, "index-codebase", func(ctx context.Context) (int, error) {
		return j.indexer.IndexRepository(ctx, event.FullName(), files)
	})
	if err != nil {
		return j.fail(ctx, record.ID, event, err)
	}

	if err := j.store.UpdateJobStatus(ctx, record.ID, JobCompleted, ""); err != nil {
		j.logger.Error("failed to mark job completed", "job", record.ID, "error", err)
	}
	j.logger.Info("indexing job completed", "job", record.ID, "repo", event.FullName(), "indexed_files", indexed)
	return nil
}

func (j *IndexJob) fail(ctx context.Context, jobID string, event *core.Event, err error) error {
	j.logger.Error("indexing job failed", "job", jobID, "repo", event.FullName(), "error", err)
	if uErr := j.store.UpdateJobStatus(ctx, jobID, JobFailed, err.Error()); uErr != nil {
		j.logger.Error("failed to mark job failed", "job", jobID, "error", uErr)
	}
	return err
}

// loadRepoConfig fetches the optional .githawk.yml. A missing or malformed
// file never fails a job; it falls back to the defaults.
func loadRepoConfig(ctx context.Context, client githost.Client, owner, repo string, logger *slog.Logger) (*core.RepoConfig, error) {
	data, err := client.GetFileContent(ctx, owner, repo, config.RepoConfigPath)
	if err != nil {
		logger.Warn("failed to fetch repo config, using defaults", "repo", owner+"/"+repo, "error", err)
		return core.DefaultRepoConfig(), nil
	}
	cfg, err := config.ParseRepoConfig(data)
	if err != nil {
		logger.Warn("invalid repo config, using defaults", "repo", owner+"/"+repo, "error", err)
		return core.DefaultRepoConfig(), nil
	}
	return cfg, nil
}
