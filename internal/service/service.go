// Package service implements the application's use cases: connecting and
// disconnecting repositories, requesting reviews, and reporting on past
// reviews. Handlers and the CLI stay thin; the rules live here.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/go-github/v73/github"

	"github.com/Abhijit1102/githawk/internal/core"
	"github.com/Abhijit1102/githawk/internal/githost"
	"github.com/Abhijit1102/githawk/internal/quota"
	"github.com/Abhijit1102/githawk/internal/storage"
)

// WebhookPath is where the server receives host webhook deliveries.
const WebhookPath = "/api/v1/webhooks/github"

var (
	// ErrAlreadyConnected is returned when a repository is connected twice.
	ErrAlreadyConnected = errors.New("repository is already connected")

	// ErrRepositoryLimit is returned when a FREE user tries to connect more
	// repositories than their tier allows.
	ErrRepositoryLimit = errors.New("repository limit reached, upgrade to PRO to connect more repositories")

	// ErrNotOwner is returned when a user operates on a repository someone
	// else connected.
	ErrNotOwner = errors.New("repository is connected by a different user")
)

// Service wires the stores, the quota gate and the job dispatcher into the
// operations exposed over HTTP and the CLI.
type Service struct {
	store         storage.Store
	vectors       storage.VectorStore
	gate          *quota.Gate
	dispatcher    core.JobDispatcher
	newClient     githost.ClientFactory
	publicBaseURL string
	embedderModel string
	logger        *slog.Logger
}

// New creates the service.
func New(
	store storage.Store,
	vectors storage.VectorStore,
	gate *quota.Gate,
	dispatcher core.JobDispatcher,
	newClient githost.ClientFactory,
	publicBaseURL string,
	embedderModel string,
	logger *slog.Logger,
) *Service {
	return &Service{
		store:         store,
		vectors:       vectors,
		gate:          gate,
		dispatcher:    dispatcher,
		newClient:     newClient,
		publicBaseURL: publicBaseURL,
		embedderModel: embedderModel,
		logger:        logger,
	}
}

func (s *Service) webhookURL() string {
	return s.publicBaseURL + WebhookPath
}

// ConnectRepository registers a repository for automated reviews: it checks
// the user's repository quota, installs the pull_request webhook, persists
// the repository and queues the initial indexing run.
func (s *Service) ConnectRepository(ctx context.Context, userID, owner, name string) (*core.Repository, error) {
	if _, err := s.store.GetRepositoryByOwnerName(ctx, owner, name); err == nil {
		return nil, fmt.Errorf("%s/%s: %w", owner, name, ErrAlreadyConnected)
	} else if !errors.Is(err, core.ErrRepositoryNotFound) {
		return nil, err
	}

	allowed, err := s.gate.CanConnectRepository(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrRepositoryLimit
	}

	cred, err := s.store.GetCredential(ctx, userID)
	if err != nil {
		return nil, err
	}
	client := s.newClient(ctx, cred.AccessToken)

	repo, err := client.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	repo.UserID = userID

	if _, err := client.CreateWebhook(ctx, owner, name, s.webhookURL()); err != nil {
		return nil, fmt.Errorf("failed to install webhook: %w", err)
	}

	if err := s.store.CreateRepository(ctx, repo); err != nil {
		return nil, fmt.Errorf("failed to persist repository: %w", err)
	}
	if err := s.gate.IncrementRepositoryCount(ctx, userID); err != nil {
		s.logger.Error("failed to count repository slot", "user", userID, "repo", repo.FullName, "error", err)
	}

	event := &core.Event{
		Name:   core.EventRepositoryConnected,
		Owner:  owner,
		Repo:   name,
		UserID: userID,
	}
	if err := s.dispatcher.Dispatch(ctx, event); err != nil {
		// The repository stays connected; indexing can be retried later.
		s.logger.Error("failed to queue indexing job", "repo", repo.FullName, "error", err)
	}

	s.logger.Info("repository connected", "repo", repo.FullName, "user", userID)
	return repo, nil
}

// DisconnectRepository removes the webhook, deletes the repository record,
// frees the user's repository slot and drops the repository's vector
// collection. Cleanup failures after the delete are logged, not returned.
func (s *Service) DisconnectRepository(ctx context.Context, userID, owner, name string) error {
	repo, err := s.store.GetRepositoryByOwnerName(ctx, owner, name)
	if err != nil {
		return err
	}
	if repo.UserID != userID {
		return fmt.Errorf("%s: %w", repo.FullName, ErrNotOwner)
	}

	cred, err := s.store.GetCredential(ctx, userID)
	if err != nil {
		return err
	}
	client := s.newClient(ctx, cred.AccessToken)

	if _, err := client.DeleteWebhook(ctx, owner, name, s.webhookURL()); err != nil {
		s.logger.Warn("failed to remove webhook", "repo", repo.FullName, "error", err)
	}

	if err := s.store.DeleteRepository(ctx, repo.ID); err != nil {
		return fmt.Errorf("failed to delete repository: %w", err)
	}
	if err := s.gate.ReleaseRepositorySlot(ctx, userID); err != nil {
		s.logger.Error("failed to release repository slot", "user", userID, "error", err)
	}

	collection := storage.CollectionName(repo.FullName, s.embedderModel)
	if err := s.vectors.DeleteCollection(ctx, collection); err != nil {
		s.logger.Warn("failed to delete vector collection", "collection", collection, "error", err)
	}

	s.logger.Info("repository disconnected", "repo", repo.FullName, "user", userID)
	return nil
}

// RequestReview queues a review for a pull request of a connected
// repository and returns immediately; the pipeline runs asynchronously.
func (s *Service) RequestReview(ctx context.Context, userID, owner, name string, prNumber int) error {
	repo, err := s.store.GetRepositoryByOwnerName(ctx, owner, name)
	if err != nil {
		return err
	}
	if userID != "" && repo.UserID != userID {
		return fmt.Errorf("%s: %w", repo.FullName, ErrNotOwner)
	}

	event := &core.Event{
		Name:     core.EventPRReviewRequested,
		Owner:    owner,
		Repo:     name,
		PRNumber: prNumber,
		UserID:   repo.UserID,
	}
	return s.dispatcher.Dispatch(ctx, event)
}

// HandlePullRequestEvent turns a host webhook delivery into a queued review.
// Deliveries for unconnected repositories and non-review actions are
// ignored without error; the host should keep getting 2xx for them.
func (s *Service) HandlePullRequestEvent(ctx context.Context, prEvent *github.PullRequestEvent) error {
	action := prEvent.GetAction()
	if action != "opened" && action != "synchronize" {
		s.logger.Debug("ignoring pull request action", "action", action)
		return nil
	}

	owner := prEvent.GetRepo().GetOwner().GetLogin()
	name := prEvent.GetRepo().GetName()
	repo, err := s.store.GetRepositoryByOwnerName(ctx, owner, name)
	if err != nil {
		if errors.Is(err, core.ErrRepositoryNotFound) {
			s.logger.Warn("webhook for unconnected repository", "repo", owner+"/"+name)
			return nil
		}
		return err
	}

	event, err := core.EventFromPullRequest(prEvent, repo.UserID)
	if err != nil {
		return err
	}
	return s.dispatcher.Dispatch(ctx, event)
}

// ListReviews returns the most recent reviews for a connected repository.
func (s *Service) ListReviews(ctx context.Context, owner, name string, limit int) ([]core.Review, error) {
	repo, err := s.store.GetRepositoryByOwnerName(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	return s.store.ListReviewsForRepo(ctx, repo.ID, limit)
}

// Stats aggregates review outcomes across the user's repositories. The
// reviews table is the authoritative source; usage counters are not read.
func (s *Service) Stats(ctx context.Context, userID string) (*storage.ReviewStats, error) {
	return s.store.GetReviewStats(ctx, userID)
}
