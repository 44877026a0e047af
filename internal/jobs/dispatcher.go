package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/Abhijit1102/githawk/internal/core"
)

// Dispatcher implements core.JobDispatcher with a pool of worker goroutines.
// Jobs for different repositories or pull requests run concurrently with no
// ordering guarantee between them; within one job, steps are sequential.
type Dispatcher struct {
	indexJob   core.Job
	reviewJob  core.Job
	jobQueue   chan *core.Event
	maxWorkers int
	wg         sync.WaitGroup
	logger     *slog.Logger
}

// NewDispatcher initializes a dispatcher with a worker pool routing events
// to the indexing or review job by event name. If maxWorkers is 0 or
// negative, it defaults to 1.
func NewDispatcher(indexJob, reviewJob core.Job, maxWorkers int, logger *slog.Logger) *Dispatcher {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	d := &Dispatcher{
		indexJob:   indexJob,
		reviewJob:  reviewJob,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan *core.Event, 100),
		logger:     logger,
	}
	d.startWorkers()
	return d
}

func (d *Dispatcher) startWorkers() {
	for i := range d.maxWorkers {
		d.wg.Add(1)
		go d.startWorker(i)
	}
}

// startWorker processes events from the queue until it's closed.
func (d *Dispatcher) startWorker(workerID int) {
	defer d.wg.Done()
	d.logger.Info("starting pipeline worker", "id", workerID)

	for event := range d.jobQueue {
		d.processEvent(workerID, event)
	}

	d.logger.Info("shutting down pipeline worker", "id", workerID)
}

func (d *Dispatcher) processEvent(workerID int, event *core.Event) {
	d.logger.Info("worker processing job",
		"worker_id", workerID,
		"event", event.Name,
		"repo", event.FullName(),
	)

	var job core.Job
	switch event.Name {
	case core.EventRepositoryConnected:
		job = d.indexJob
	case core.EventPRReviewRequested:
		job = d.reviewJob
	default:
		d.logger.Error("no job registered for event", "event", event.Name)
		return
	}

	// Jobs outlive the dispatching request on purpose.
	if err := job.Run(context.Background(), event); err != nil {
		d.logger.Error("job failed",
			"event", event.Name,
			"repo", event.FullName(),
			"pr", event.PRNumber,
			"error", err,
		)
	}
}

// Dispatch queues an event for processing by a worker. A full queue is an
// error: the caller gets backpressure instead of silent loss.
func (d *Dispatcher) Dispatch(_ context.Context, event *core.Event) error {
	if err := event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}

	d.logger.Info("queuing job", "event", event.Name, "repo", event.FullName(), "pr", event.PRNumber)

	select {
	case d.jobQueue <- event:
		return nil
	default:
		return fmt.Errorf("job queue is full, cannot accept new %s job", event.Name)
	}
}

// Stop gracefully shuts down the dispatcher, waiting for in-flight jobs.
func (d *Dispatcher) Stop() {
	d.logger.Info("stopping dispatcher and waiting for jobs to finish")
	close(d.jobQueue)
	d.wg.Wait()
	d.logger.Info("all jobs have finished")
}
