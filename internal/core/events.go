// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import (
	"fmt"

	"github.com/google/go-github/v73/github"
)

// EventName identifies the kind of work an event requests.
type EventName string

const (
	// EventRepositoryConnected triggers a one-time indexing run for a
	// freshly connected repository.
	EventRepositoryConnected EventName = "repository.connected"

	// EventPRReviewRequested triggers the full review pipeline for a
	// single pull request.
	EventPRReviewRequested EventName = "pr.review.requested"
)

// Event is the contract surface between the intake layer and the job
// orchestrator. Payload fields a given event kind does not use are left zero.
type Event struct {
	Name     EventName `json:"name"`
	Owner    string    `json:"owner"`
	Repo     string    `json:"repo"`
	PRNumber int       `json:"prNumber,omitempty"`
	UserID   string    `json:"userId"`
}

// FullName returns the canonical "owner/repo" form.
func (e *Event) FullName() string {
	return e.Owner + "/" + e.Repo
}

// Validate checks that the event carries everything its kind requires.
func (e *Event) Validate() error {
	if e.Owner == "" {
		return fmt.Errorf("repository owner cannot be empty")
	}
	if e.Repo == "" {
		return fmt.Errorf("repository name cannot be empty")
	}
	if e.UserID == "" {
		return fmt.Errorf("user id cannot be empty")
	}
	switch e.Name {
	case EventRepositoryConnected:
		return nil
	case EventPRReviewRequested:
		if e.PRNumber <= 0 {
			return fmt.Errorf("pull request number must be positive, got: %d", e.PRNumber)
		}
		return nil
	default:
		return fmt.Errorf("unknown event name: %q", e.Name)
	}
}

// EventFromPullRequest transforms a raw GitHub PullRequestEvent into the
// application's internal Event representation. It acts as an anti-corruption
// layer, ensuring the webhook payload is valid before a job is dispatched.
// Only opened and synchronize actions request a review; the owning user is
// resolved by the caller from the connected repository record.
func EventFromPullRequest(event *github.PullRequestEvent, userID string) (*Event, error) {
	action := event.GetAction()
	if action != "opened" && action != "synchronize" {
		return nil, fmt.Errorf("pull request action %q does not request a review", action)
	}

	repo := event.GetRepo()
	if repo == nil || repo.GetOwner() == nil || repo.GetOwner().GetLogin() == "" || repo.GetName() == "" {
		return nil, fmt.Errorf("repository or owner information is missing from the event")
	}

	prNumber := event.GetPullRequest().GetNumber()
	if prNumber <= 0 {
		return nil, fmt.Errorf("invalid pull request number: %d", prNumber)
	}

	if userID == "" {
		return nil, fmt.Errorf("no owning user for repository %s", repo.GetFullName())
	}

	return &Event{
		Name:     EventPRReviewRequested,
		Owner:    repo.GetOwner().GetLogin(),
		Repo:     repo.GetName(),
		PRNumber: prNumber,
		UserID:   userID,
	}, nil
}
