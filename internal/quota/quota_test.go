package quota

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abhijit1102/githawk/internal/config"
	"github.com/Abhijit1102/githawk/internal/core"
)

// fakeUsageStore keeps tiers and counters in memory.
type fakeUsageStore struct {
	tiers     map[string]core.Tier
	reviews   map[string]int
	repoSlots map[string]int
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{
		tiers:     make(map[string]core.Tier),
		reviews:   make(map[string]int),
		repoSlots: make(map[string]int),
	}
}

func reviewKey(userID string, repositoryID int64) string {
	return fmt.Sprintf("%s/%d", userID, repositoryID)
}

func (f *fakeUsageStore) GetUserTier(_ context.Context, userID string) (core.Tier, error) {
	if tier, ok := f.tiers[userID]; ok {
		return tier, nil
	}
	return core.TierFree, nil
}

func (f *fakeUsageStore) GetUsage(_ context.Context, userID string, repositoryID int64) (*core.UsageCounter, error) {
	return &core.UsageCounter{
		UserID:       userID,
		RepositoryID: repositoryID,
		ReviewCount:  f.reviews[reviewKey(userID, repositoryID)],
	}, nil
}

func (f *fakeUsageStore) GetRepositoryCount(_ context.Context, userID string) (int, error) {
	return f.repoSlots[userID], nil
}

func (f *fakeUsageStore) IncrementReviewCount(_ context.Context, userID string, repositoryID int64) error {
	f.reviews[reviewKey(userID, repositoryID)]++
	return nil
}

func (f *fakeUsageStore) IncrementRepositoryCount(_ context.Context, userID string) error {
	f.repoSlots[userID]++
	return nil
}

func (f *fakeUsageStore) DecrementRepositoryCount(_ context.Context, userID string) error {
	if f.repoSlots[userID] > 0 {
		f.repoSlots[userID]--
	}
	return nil
}

func newTestGate(store *fakeUsageStore) *Gate {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	return NewGate(store, config.QuotaConfig{FreeMaxRepositories: 5, FreeMaxReviews: 5}, logger)
}

func TestCanCreateReviewFreeTierLimit(t *testing.T) {
	ctx := context.Background()
	store := newFakeUsageStore()
	gate := newTestGate(store)

	// The first five attempts pass, each consuming one unit.
	for i := range 5 {
		allowed, err := gate.CanCreateReview(ctx, "u-free", 1)
		require.NoError(t, err)
		assert.True(t, allowed, "attempt %d should be allowed", i+1)
		require.NoError(t, gate.IncrementReviewCount(ctx, "u-free", 1))
	}

	// The sixth is denied, and denial consumes nothing.
	allowed, err := gate.CanCreateReview(ctx, "u-free", 1)
	require.NoError(t, err)
	assert.False(t, allowed)
	assert.Equal(t, 5, store.reviews[reviewKey("u-free", 1)])

	// Limits are per repository.
	allowed, err = gate.CanCreateReview(ctx, "u-free", 2)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCanCreateReviewProUnlimited(t *testing.T) {
	ctx := context.Background()
	store := newFakeUsageStore()
	store.tiers["u-pro"] = core.TierPro
	store.reviews[reviewKey("u-pro", 1)] = 100
	gate := newTestGate(store)

	allowed, err := gate.CanCreateReview(ctx, "u-pro", 1)
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCanConnectRepositoryLimit(t *testing.T) {
	ctx := context.Background()
	store := newFakeUsageStore()
	gate := newTestGate(store)

	for range 5 {
		allowed, err := gate.CanConnectRepository(ctx, "u-free")
		require.NoError(t, err)
		assert.True(t, allowed)
		require.NoError(t, gate.IncrementRepositoryCount(ctx, "u-free"))
	}

	allowed, err := gate.CanConnectRepository(ctx, "u-free")
	require.NoError(t, err)
	assert.False(t, allowed)

	// Disconnecting frees a slot.
	require.NoError(t, gate.ReleaseRepositorySlot(ctx, "u-free"))
	allowed, err = gate.CanConnectRepository(ctx, "u-free")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCanConnectRepositoryProUnlimited(t *testing.T) {
	ctx := context.Background()
	store := newFakeUsageStore()
	store.tiers["u-pro"] = core.TierPro
	store.repoSlots["u-pro"] = 50
	gate := newTestGate(store)

	allowed, err := gate.CanConnectRepository(ctx, "u-pro")
	require.NoError(t, err)
	assert.True(t, allowed)
}
