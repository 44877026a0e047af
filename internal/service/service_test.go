package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/google/go-github/v73/github"
	"github.com/sevigo/goframe/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abhijit1102/githawk/internal/config"
	"github.com/Abhijit1102/githawk/internal/core"
	"github.com/Abhijit1102/githawk/internal/githost"
	"github.com/Abhijit1102/githawk/internal/quota"
	"github.com/Abhijit1102/githawk/internal/storage"
)

// fakeStore is an in-memory storage.Store.
type fakeStore struct {
	repos     map[string]*core.Repository
	creds     map[string]*core.Credential
	tiers     map[string]core.Tier
	repoSlots map[string]int
	nextID    int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		repos:     make(map[string]*core.Repository),
		creds:     make(map[string]*core.Credential),
		tiers:     make(map[string]core.Tier),
		repoSlots: make(map[string]int),
	}
}

func (f *fakeStore) CreateRepository(_ context.Context, repo *core.Repository) error {
	f.nextID++
	repo.ID = f.nextID
	f.repos[repo.Owner+"/"+repo.Name] = repo
	return nil
}

func (f *fakeStore) GetRepositoryByOwnerName(_ context.Context, owner, name string) (*core.Repository, error) {
	repo, ok := f.repos[owner+"/"+name]
	if !ok {
		return nil, fmt.Errorf("repository %s/%s: %w", owner, name, core.ErrRepositoryNotFound)
	}
	return repo, nil
}

func (f *fakeStore) DeleteRepository(_ context.Context, id int64) error {
	for key, repo := range f.repos {
		if repo.ID == id {
			delete(f.repos, key)
		}
	}
	return nil
}

func (f *fakeStore) GetUserTier(_ context.Context, userID string) (core.Tier, error) {
	if tier, ok := f.tiers[userID]; ok {
		return tier, nil
	}
	return core.TierFree, nil
}

func (f *fakeStore) GetCredential(_ context.Context, userID string) (*core.Credential, error) {
	cred, ok := f.creds[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, core.ErrNoCredential)
	}
	return cred, nil
}

func (f *fakeStore) CreateReview(context.Context, *core.Review) error { return nil }
func (f *fakeStore) SetReviewContent(context.Context, int64, string, string, string) error {
	return nil
}
func (f *fakeStore) MarkReviewCompleted(context.Context, int64) error       { return nil }
func (f *fakeStore) MarkReviewFailed(context.Context, int64, string) error  { return nil }
func (f *fakeStore) ListReviewsForRepo(context.Context, int64, int) ([]core.Review, error) {
	return nil, nil
}
func (f *fakeStore) GetReviewStats(context.Context, string) (*storage.ReviewStats, error) {
	return &storage.ReviewStats{}, nil
}
func (f *fakeStore) GetUsage(_ context.Context, userID string, repositoryID int64) (*core.UsageCounter, error) {
	return &core.UsageCounter{UserID: userID, RepositoryID: repositoryID}, nil
}
func (f *fakeStore) IncrementReviewCount(context.Context, string, int64) error { return nil }

func (f *fakeStore) GetRepositoryCount(_ context.Context, userID string) (int, error) {
	return f.repoSlots[userID], nil
}

func (f *fakeStore) IncrementRepositoryCount(_ context.Context, userID string) error {
	f.repoSlots[userID]++
	return nil
}

func (f *fakeStore) DecrementRepositoryCount(_ context.Context, userID string) error {
	if f.repoSlots[userID] > 0 {
		f.repoSlots[userID]--
	}
	return nil
}

func (f *fakeStore) CreateJob(context.Context, *storage.JobRecord) error         { return nil }
func (f *fakeStore) UpdateJobStatus(context.Context, string, string, string) error { return nil }
func (f *fakeStore) GetJobStep(context.Context, string, string) (json.RawMessage, bool, error) {
	return nil, false, nil
}
func (f *fakeStore) SaveJobStep(context.Context, string, string, json.RawMessage) error { return nil }

// fakeVectors records deleted collections.
type fakeVectors struct {
	deleted []string
}

func (f *fakeVectors) AddDocuments(context.Context, string, []schema.Document) error { return nil }
func (f *fakeVectors) SimilaritySearch(context.Context, string, string, int) ([]schema.Document, error) {
	return nil, nil
}
func (f *fakeVectors) DeleteCollection(_ context.Context, name string) error {
	f.deleted = append(f.deleted, name)
	return nil
}

// fakeDispatcher records dispatched events.
type fakeDispatcher struct {
	events []*core.Event
}

func (f *fakeDispatcher) Dispatch(_ context.Context, event *core.Event) error {
	f.events = append(f.events, event)
	return nil
}

// fakeHost is an in-memory githost.Client tracking webhook state.
type fakeHost struct {
	hooks map[string]int64
}

func (f *fakeHost) GetRepository(_ context.Context, owner, repo string) (*core.Repository, error) {
	return &core.Repository{
		GitHubID: 42,
		Owner:    owner,
		Name:     repo,
		FullName: owner + "/" + repo,
		URL:      "https://github.com/" + owner + "/" + repo,
	}, nil
}

func (f *fakeHost) ListRepositoryFiles(context.Context, string, string, *core.RepoConfig) ([]core.RepoFile, error) {
	return nil, nil
}

func (f *fakeHost) GetPullRequestDiff(context.Context, string, string, int) (*core.PullRequestDiff, error) {
	return &core.PullRequestDiff{}, nil
}

func (f *fakeHost) PostComment(context.Context, string, string, int, string) error { return nil }
func (f *fakeHost) GetFileContent(context.Context, string, string, string) ([]byte, error) {
	return nil, nil
}

func (f *fakeHost) CreateWebhook(_ context.Context, owner, repo, hookURL string) (int64, error) {
	f.hooks[owner+"/"+repo] = 1
	return 1, nil
}

func (f *fakeHost) DeleteWebhook(_ context.Context, owner, repo, _ string) (bool, error) {
	_, ok := f.hooks[owner+"/"+repo]
	delete(f.hooks, owner+"/"+repo)
	return ok, nil
}

type testDeps struct {
	store      *fakeStore
	vectors    *fakeVectors
	dispatcher *fakeDispatcher
	host       *fakeHost
	svc        *Service
}

func newTestService() *testDeps {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := newFakeStore()
	store.creds["u-1"] = &core.Credential{UserID: "u-1", Provider: "github", AccessToken: "tok"}
	vectors := &fakeVectors{}
	dispatcher := &fakeDispatcher{}
	host := &fakeHost{hooks: make(map[string]int64)}
	gate := quota.NewGate(store, config.QuotaConfig{FreeMaxRepositories: 2, FreeMaxReviews: 5}, logger)
	factory := githost.ClientFactory(func(context.Context, string) githost.Client { return host })
	svc := New(store, vectors, gate, dispatcher, factory, "https://hawk.example.com", "nomic-embed-text", logger)
	return &testDeps{store: store, vectors: vectors, dispatcher: dispatcher, host: host, svc: svc}
}

func TestConnectRepository(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()

	repo, err := deps.svc.ConnectRepository(ctx, "u-1", "octocat", "hello-world")
	require.NoError(t, err)
	assert.Equal(t, "octocat/hello-world", repo.FullName)
	assert.Equal(t, "u-1", repo.UserID)

	// Webhook installed, slot consumed, indexing queued.
	assert.Contains(t, deps.host.hooks, "octocat/hello-world")
	assert.Equal(t, 1, deps.store.repoSlots["u-1"])
	require.Len(t, deps.dispatcher.events, 1)
	assert.Equal(t, core.EventRepositoryConnected, deps.dispatcher.events[0].Name)
}

func TestConnectRepositoryTwice(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()

	_, err := deps.svc.ConnectRepository(ctx, "u-1", "octocat", "hello-world")
	require.NoError(t, err)

	_, err = deps.svc.ConnectRepository(ctx, "u-1", "octocat", "hello-world")
	assert.ErrorIs(t, err, ErrAlreadyConnected)
	assert.Equal(t, 1, deps.store.repoSlots["u-1"])
}

func TestConnectRepositoryQuota(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()

	_, err := deps.svc.ConnectRepository(ctx, "u-1", "octocat", "one")
	require.NoError(t, err)
	_, err = deps.svc.ConnectRepository(ctx, "u-1", "octocat", "two")
	require.NoError(t, err)

	_, err = deps.svc.ConnectRepository(ctx, "u-1", "octocat", "three")
	assert.ErrorIs(t, err, ErrRepositoryLimit)
	// A denied connect leaves no webhook behind.
	assert.NotContains(t, deps.host.hooks, "octocat/three")
}

func TestDisconnectRepository(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()

	_, err := deps.svc.ConnectRepository(ctx, "u-1", "octocat", "hello-world")
	require.NoError(t, err)

	require.NoError(t, deps.svc.DisconnectRepository(ctx, "u-1", "octocat", "hello-world"))

	assert.NotContains(t, deps.host.hooks, "octocat/hello-world")
	assert.Equal(t, 0, deps.store.repoSlots["u-1"])
	// The repository's vectors are dropped with it.
	assert.Equal(t, []string{storage.CollectionName("octocat/hello-world", "nomic-embed-text")}, deps.vectors.deleted)

	_, err = deps.svc.ConnectRepository(ctx, "u-1", "octocat", "hello-world")
	assert.NoError(t, err)
}

func TestDisconnectRepositoryWrongUser(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()

	_, err := deps.svc.ConnectRepository(ctx, "u-1", "octocat", "hello-world")
	require.NoError(t, err)

	deps.store.creds["u-2"] = &core.Credential{UserID: "u-2", AccessToken: "tok2"}
	err = deps.svc.DisconnectRepository(ctx, "u-2", "octocat", "hello-world")
	assert.ErrorIs(t, err, ErrNotOwner)
	assert.Contains(t, deps.host.hooks, "octocat/hello-world")
}

func TestRequestReview(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()

	_, err := deps.svc.ConnectRepository(ctx, "u-1", "octocat", "hello-world")
	require.NoError(t, err)
	deps.dispatcher.events = nil

	require.NoError(t, deps.svc.RequestReview(ctx, "u-1", "octocat", "hello-world", 7))
	require.Len(t, deps.dispatcher.events, 1)
	event := deps.dispatcher.events[0]
	assert.Equal(t, core.EventPRReviewRequested, event.Name)
	assert.Equal(t, 7, event.PRNumber)
	assert.Equal(t, "u-1", event.UserID)
}

func TestRequestReviewUnknownRepository(t *testing.T) {
	deps := newTestService()
	err := deps.svc.RequestReview(context.Background(), "u-1", "octocat", "nope", 1)
	assert.ErrorIs(t, err, core.ErrRepositoryNotFound)
	assert.Empty(t, deps.dispatcher.events)
}

func webhookPREvent(action, owner, name string, number int) *github.PullRequestEvent {
	return &github.PullRequestEvent{
		Action: github.Ptr(action),
		Repo: &github.Repository{
			Name:  github.Ptr(name),
			Owner: &github.User{Login: github.Ptr(owner)},
		},
		PullRequest: &github.PullRequest{Number: github.Ptr(number)},
	}
}

func TestHandlePullRequestEvent(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()

	_, err := deps.svc.ConnectRepository(ctx, "u-1", "octocat", "hello-world")
	require.NoError(t, err)
	deps.dispatcher.events = nil

	require.NoError(t, deps.svc.HandlePullRequestEvent(ctx, webhookPREvent("opened", "octocat", "hello-world", 3)))
	require.Len(t, deps.dispatcher.events, 1)
	// The owning user is resolved from the connected repository record.
	assert.Equal(t, "u-1", deps.dispatcher.events[0].UserID)
	assert.Equal(t, 3, deps.dispatcher.events[0].PRNumber)
}

func TestHandlePullRequestEventIgnored(t *testing.T) {
	deps := newTestService()
	ctx := context.Background()

	_, err := deps.svc.ConnectRepository(ctx, "u-1", "octocat", "hello-world")
	require.NoError(t, err)
	deps.dispatcher.events = nil

	// Non-review actions and unconnected repositories are acknowledged
	// without queuing anything.
	require.NoError(t, deps.svc.HandlePullRequestEvent(ctx, webhookPREvent("closed", "octocat", "hello-world", 3)))
	require.NoError(t, deps.svc.HandlePullRequestEvent(ctx, webhookPREvent("opened", "stranger", "repo", 3)))
	assert.Empty(t, deps.dispatcher.events)
}
