// Package quota decides whether a review may be queued or a repository
// connected, given the user's tier and historical usage. Limits are
// lifetime counts of attempts, not completions.
package quota

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Abhijit1102/githawk/internal/config"
	"github.com/Abhijit1102/githawk/internal/core"
)

// UsageStore is the slice of the relational store the gate needs.
type UsageStore interface {
	GetUserTier(ctx context.Context, userID string) (core.Tier, error)
	GetUsage(ctx context.Context, userID string, repositoryID int64) (*core.UsageCounter, error)
	GetRepositoryCount(ctx context.Context, userID string) (int, error)
	IncrementReviewCount(ctx context.Context, userID string, repositoryID int64) error
	IncrementRepositoryCount(ctx context.Context, userID string) error
	DecrementRepositoryCount(ctx context.Context, userID string) error
}

// Gate enforces per-tier usage limits. Denials have no side effects;
// consumption happens only through the explicit increment calls.
type Gate struct {
	store  UsageStore
	limits config.QuotaConfig
	logger *slog.Logger
}

// NewGate creates a quota gate with the configured FREE-tier limits.
func NewGate(store UsageStore, limits config.QuotaConfig, logger *slog.Logger) *Gate {
	return &Gate{store: store, limits: limits, logger: logger}
}

// CanCreateReview reports whether another review may be queued for the
// given user and repository. PRO users are unlimited; FREE users get a
// lifetime budget of reviews per repository.
func (g *Gate) CanCreateReview(ctx context.Context, userID string, repositoryID int64) (bool, error) {
	tier, err := g.store.GetUserTier(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve user tier: %w", err)
	}
	if tier == core.TierPro {
		return true, nil
	}

	usage, err := g.store.GetUsage(ctx, userID, repositoryID)
	if err != nil {
		return false, fmt.Errorf("failed to load usage counter: %w", err)
	}
	if usage.ReviewCount >= g.limits.FreeMaxReviews {
		g.logger.Info("review quota exhausted",
			"user", userID,
			"repository", repositoryID,
			"count", usage.ReviewCount,
			"limit", g.limits.FreeMaxReviews,
		)
		return false, nil
	}
	return true, nil
}

// CanConnectRepository reports whether the user may connect another
// repository under their tier's limits.
func (g *Gate) CanConnectRepository(ctx context.Context, userID string) (bool, error) {
	tier, err := g.store.GetUserTier(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve user tier: %w", err)
	}
	if tier == core.TierPro {
		return true, nil
	}

	count, err := g.store.GetRepositoryCount(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to load repository count: %w", err)
	}
	if count >= g.limits.FreeMaxRepositories {
		g.logger.Info("repository quota exhausted", "user", userID, "count", count, "limit", g.limits.FreeMaxRepositories)
		return false, nil
	}
	return true, nil
}

// IncrementReviewCount consumes one review attempt. The underlying store
// performs a single-row atomic increment, so concurrent attempts for the
// same key never lose updates.
func (g *Gate) IncrementReviewCount(ctx context.Context, userID string, repositoryID int64) error {
	return g.store.IncrementReviewCount(ctx, userID, repositoryID)
}

// IncrementRepositoryCount consumes one repository slot.
func (g *Gate) IncrementRepositoryCount(ctx context.Context, userID string) error {
	return g.store.IncrementRepositoryCount(ctx, userID)
}

// ReleaseRepositorySlot frees a repository slot on disconnect.
func (g *Gate) ReleaseRepositorySlot(ctx context.Context, userID string) error {
	return g.store.DecrementRepositoryCount(ctx, userID)
}
