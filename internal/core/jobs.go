package core

import (
	"context"
)

// JobDispatcher defines the contract for a system that can accept and queue
// background jobs for asynchronous processing. This interface decouples the
// event source (webhook handler, intake API) from the job execution mechanism.
type JobDispatcher interface {
	// Dispatch accepts an Event and queues it for processing. It returns an
	// error if the job cannot be queued, for example when the queue is full,
	// providing a mechanism for backpressure.
	Dispatch(ctx context.Context, event *Event) error
}

// Job represents a single, executable unit of work processed by the
// dispatcher. Each job is triggered by an Event and drives one of the
// pipeline's step chains to a terminal state.
type Job interface {
	// Run executes the job's logic. It returns an error only when the job
	// reached a terminal failure; retries happen inside.
	Run(ctx context.Context, event *Event) error
}
