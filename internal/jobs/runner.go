// Package jobs implements the durable multi-step orchestration of the
// review pipeline: a step runner with memoized results and bounded retries,
// a worker-pool dispatcher, and the two jobs the pipeline knows about.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Abhijit1102/githawk/internal/core"
	"github.com/Abhijit1102/githawk/internal/storage"
)

// Job statuses persisted in the jobs table.
const (
	JobReceived  = "RECEIVED"
	JobRunning   = "RUNNING"
	JobCompleted = "COMPLETED"
	JobFailed    = "FAILED"
)

// StepStore is the slice of the relational store the runner needs to make
// step results durable.
type StepStore interface {
	CreateJob(ctx context.Context, job *storage.JobRecord) error
	UpdateJobStatus(ctx context.Context, jobID, status, errMsg string) error
	GetJobStep(ctx context.Context, jobID, stepName string) (json.RawMessage, bool, error)
	SaveJobStep(ctx context.Context, jobID, stepName string, result json.RawMessage) error
}

// RetryPolicy bounds how a step behaves under failure.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	StepTimeout time.Duration
}

// Runner executes named steps for one job instance. Each step runs at most
// once successfully: results are memoized in process and persisted, so a
// retried or resumed job replays completed steps instead of re-executing
// their side effects.
type Runner struct {
	jobID  string
	store  StepStore
	policy RetryPolicy
	logger *slog.Logger
	memo   map[string]json.RawMessage
}

// NewRunner creates a step runner for the given job instance.
func NewRunner(jobID string, store StepStore, policy RetryPolicy, logger *slog.Logger) *Runner {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = time.Second
	}
	if policy.StepTimeout <= 0 {
		policy.StepTimeout = 2 * time.Minute
	}
	return &Runner{
		jobID:  jobID,
		store:  store,
		policy: policy,
		logger: logger,
		memo:   make(map[string]json.RawMessage),
	}
}

// RunStep executes fn under the step's name. Completed results are returned
// from the memo without re-running fn. Transient failures retry with
// exponential backoff up to the policy's attempt limit; permanent failures
// abort immediately. Each attempt runs under the step timeout, and a timed
// out attempt counts as a transient failure.
func RunStep[T any](ctx context.Context, r *Runner, name string, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	if raw, ok := r.memo[name]; ok {
		var out T
		if err := json.Unmarshal(raw, &out); err != nil {
			return zero, fmt.Errorf("step %s: corrupt memoized result: %w", name, err)
		}
		return out, nil
	}

	// A resumed job finds results from its earlier incarnation here.
	if raw, found, err := r.store.GetJobStep(ctx, r.jobID, name); err != nil {
		r.logger.Warn("failed to load persisted step result", "job", r.jobID, "step", name, "error", err)
	} else if found {
		var out T
		if err := json.Unmarshal(raw, &out); err != nil {
			return zero, fmt.Errorf("step %s: corrupt persisted result: %w", name, err)
		}
		r.memo[name] = raw
		r.logger.Info("step result replayed", "job", r.jobID, "step", name)
		return out, nil
	}

	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		stepCtx, cancel := context.WithTimeout(ctx, r.policy.StepTimeout)
		out, err := fn(stepCtx)
		cancel()

		if err == nil {
			raw, mErr := json.Marshal(out)
			if mErr != nil {
				return zero, fmt.Errorf("step %s: failed to encode result: %w", name, mErr)
			}
			r.memo[name] = raw
			if sErr := r.store.SaveJobStep(ctx, r.jobID, name, raw); sErr != nil {
				// The in-process memo still guards this instance.
				r.logger.Warn("failed to persist step result", "job", r.jobID, "step", name, "error", sErr)
			}
			return out, nil
		}

		lastErr = err
		if !core.IsTransient(err) {
			return zero, fmt.Errorf("step %s: %w", name, err)
		}
		if attempt == r.policy.MaxAttempts {
			break
		}

		delay := r.policy.BaseDelay * time.Duration(1<<(attempt-1))
		r.logger.Warn("retrying step after transient error",
			"job", r.jobID,
			"step", name,
			"attempt", attempt,
			"max_attempts", r.policy.MaxAttempts,
			"delay", delay,
			"error", err,
		)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}

	return zero, fmt.Errorf("step %s failed after %d attempts: %w", name, r.policy.MaxAttempts, lastErr)
}
