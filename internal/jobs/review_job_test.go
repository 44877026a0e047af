package jobs

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Abhijit1102/githawk/internal/core"
	"github.com/Abhijit1102/githawk/internal/githost"
	"github.com/Abhijit1102/githawk/internal/llm"
	"github.com/Abhijit1102/githawk/internal/storage"
)

// fakeReviewStore extends the step store with repository, credential and
// review state.
type fakeReviewStore struct {
	*fakeStepStore
	repos        map[string]*core.Repository
	creds        map[string]*core.Credential
	reviews      map[int64]*core.Review
	nextReviewID int64
}

func newFakeReviewStore() *fakeReviewStore {
	return &fakeReviewStore{
		fakeStepStore: newFakeStepStore(),
		repos:         make(map[string]*core.Repository),
		creds:         make(map[string]*core.Credential),
		reviews:       make(map[int64]*core.Review),
	}
}

func (f *fakeReviewStore) GetRepositoryByOwnerName(_ context.Context, owner, name string) (*core.Repository, error) {
	repo, ok := f.repos[owner+"/"+name]
	if !ok {
		return nil, fmt.Errorf("repository %s/%s: %w", owner, name, core.ErrRepositoryNotFound)
	}
	return repo, nil
}

func (f *fakeReviewStore) GetCredential(_ context.Context, userID string) (*core.Credential, error) {
	cred, ok := f.creds[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, core.ErrNoCredential)
	}
	return cred, nil
}

func (f *fakeReviewStore) CreateReview(_ context.Context, review *core.Review) error {
	f.nextReviewID++
	review.ID = f.nextReviewID
	if review.Status == "" {
		review.Status = core.ReviewPending
	}
	copied := *review
	f.reviews[review.ID] = &copied
	return nil
}

func (f *fakeReviewStore) SetReviewContent(_ context.Context, id int64, title, url, body string) error {
	review, ok := f.reviews[id]
	if !ok || review.Status != core.ReviewPending {
		return nil
	}
	review.PRTitle = title
	review.PRURL = url
	review.Body = body
	return nil
}

func (f *fakeReviewStore) markTerminal(id int64, status core.ReviewStatus, message string) error {
	review, ok := f.reviews[id]
	if !ok {
		return fmt.Errorf("review %d not found", id)
	}
	if review.Status != core.ReviewPending {
		return fmt.Errorf("review %d: %w", id, storage.ErrReviewTerminal)
	}
	review.Status = status
	review.Error = message
	return nil
}

func (f *fakeReviewStore) MarkReviewCompleted(_ context.Context, id int64) error {
	return f.markTerminal(id, core.ReviewCompleted, "")
}

func (f *fakeReviewStore) MarkReviewFailed(_ context.Context, id int64, message string) error {
	return f.markTerminal(id, core.ReviewFailed, message)
}

// fakeGate answers quota checks and counts consumption.
type fakeGate struct {
	allowed     bool
	checks      int
	incremented int
}

func (f *fakeGate) CanCreateReview(context.Context, string, int64) (bool, error) {
	f.checks++
	return f.allowed, nil
}

func (f *fakeGate) IncrementReviewCount(context.Context, string, int64) error {
	f.incremented++
	return nil
}

// fakeGenerator fails a configured number of times before succeeding.
type fakeGenerator struct {
	output   string
	failures int
	calls    int
}

func (f *fakeGenerator) GenerateReview(context.Context, llm.ReviewInput) (string, error) {
	f.calls++
	if f.calls <= f.failures {
		return "", fmt.Errorf("model returned empty response")
	}
	return f.output, nil
}

// fakeRetriever returns canned context chunks.
type fakeRetriever struct {
	chunks []core.ContextChunk
}

func (f *fakeRetriever) BuildContext(context.Context, string, string) []core.ContextChunk {
	return f.chunks
}

// fakeHostClient is an in-memory githost.Client.
type fakeHostClient struct {
	files       []core.RepoFile
	fileContent map[string][]byte
	diff        *core.PullRequestDiff
	diffErr     error
	diffCalls   int
	comments    []string
	listCalls   int
}

func (f *fakeHostClient) GetRepository(_ context.Context, owner, repo string) (*core.Repository, error) {
	return &core.Repository{Owner: owner, Name: repo, FullName: owner + "/" + repo}, nil
}

func (f *fakeHostClient) ListRepositoryFiles(context.Context, string, string, *core.RepoConfig) ([]core.RepoFile, error) {
	f.listCalls++
	return f.files, nil
}

func (f *fakeHostClient) GetPullRequestDiff(context.Context, string, string, int) (*core.PullRequestDiff, error) {
	f.diffCalls++
	if f.diffErr != nil {
		return nil, f.diffErr
	}
	return f.diff, nil
}

func (f *fakeHostClient) PostComment(_ context.Context, _, _ string, _ int, body string) error {
	f.comments = append(f.comments, body)
	return nil
}

func (f *fakeHostClient) GetFileContent(_ context.Context, _, _, path string) ([]byte, error) {
	return f.fileContent[path], nil
}

func (f *fakeHostClient) CreateWebhook(context.Context, string, string, string) (int64, error) {
	return 1, nil
}

func (f *fakeHostClient) DeleteWebhook(context.Context, string, string, string) (bool, error) {
	return true, nil
}

func clientFactory(client githost.Client) githost.ClientFactory {
	return func(context.Context, string) githost.Client { return client }
}

func reviewEvent() *core.Event {
	return &core.Event{
		Name:     core.EventPRReviewRequested,
		Owner:    "octocat",
		Repo:     "hello-world",
		PRNumber: 7,
		UserID:   "u-1",
	}
}

func seededReviewStore() *fakeReviewStore {
	store := newFakeReviewStore()
	store.repos["octocat/hello-world"] = &core.Repository{
		ID:       1,
		Owner:    "octocat",
		Name:     "hello-world",
		FullName: "octocat/hello-world",
		UserID:   "u-1",
	}
	store.creds["u-1"] = &core.Credential{UserID: "u-1", Provider: "github", AccessToken: "tok"}
	return store
}

func TestReviewJobHappyPath(t *testing.T) {
	store := seededReviewStore()
	gate := &fakeGate{allowed: true}
	client := &fakeHostClient{
		diff: &core.PullRequestDiff{Diff: "diff --git a/main.go b/main.go", Title: "Fix bug", Description: "details"},
	}
	gen := &fakeGenerator{output: "Looks good, one nit."}

	job := NewReviewJob(store, gate, &fakeRetriever{}, gen, clientFactory(client), fastPolicy(), testLogger())
	err := job.Run(context.Background(), reviewEvent())
	require.NoError(t, err)

	require.Len(t, store.reviews, 1)
	review := store.reviews[1]
	assert.Equal(t, core.ReviewCompleted, review.Status)
	assert.Equal(t, "Fix bug", review.PRTitle)
	assert.Equal(t, "Looks good, one nit.", review.Body)
	assert.Equal(t, "https://github.com/octocat/hello-world/pull/7", review.PRURL)

	require.Len(t, client.comments, 1)
	assert.Contains(t, client.comments[0], "AI Code Review")
	assert.Contains(t, client.comments[0], "Looks good, one nit.")
	assert.Contains(t, client.comments[0], "Githawk")

	assert.Equal(t, 1, gate.incremented)

	require.Len(t, store.jobs, 1)
	for _, record := range store.jobs {
		assert.Equal(t, JobCompleted, record.Status)
	}
}

func TestReviewJobQuotaDenied(t *testing.T) {
	store := seededReviewStore()
	gate := &fakeGate{allowed: false}
	client := &fakeHostClient{diff: &core.PullRequestDiff{Diff: "x"}}

	job := NewReviewJob(store, gate, &fakeRetriever{}, &fakeGenerator{output: "ok"}, clientFactory(client), fastPolicy(), testLogger())
	err := job.Run(context.Background(), reviewEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrQuotaExceeded)

	// Denial leaves a FAILED review naming the quota and runs nothing
	// downstream of the gate.
	review := store.reviews[1]
	require.NotNil(t, review)
	assert.Equal(t, core.ReviewFailed, review.Status)
	assert.Contains(t, review.Error, "limit")
	assert.Equal(t, 0, gate.incremented)
	assert.Equal(t, 0, client.diffCalls)
	assert.Empty(t, client.comments)
}

func TestReviewJobRetriesGenerationThenPublishesOnce(t *testing.T) {
	store := seededReviewStore()
	gate := &fakeGate{allowed: true}
	client := &fakeHostClient{diff: &core.PullRequestDiff{Diff: "diff", Title: "t"}}
	gen := &fakeGenerator{output: "review text", failures: 2}

	job := NewReviewJob(store, gate, &fakeRetriever{}, gen, clientFactory(client), fastPolicy(), testLogger())
	err := job.Run(context.Background(), reviewEvent())
	require.NoError(t, err)

	assert.Equal(t, 3, gen.calls)
	// Exactly one comment regardless of retries upstream.
	assert.Len(t, client.comments, 1)
	assert.Equal(t, 1, gate.incremented)
	assert.Equal(t, core.ReviewCompleted, store.reviews[1].Status)
}

func TestReviewJobPermanentDiffFailure(t *testing.T) {
	store := seededReviewStore()
	gate := &fakeGate{allowed: true}
	client := &fakeHostClient{diffErr: core.ErrPullRequestGone}

	job := NewReviewJob(store, gate, &fakeRetriever{}, &fakeGenerator{output: "x"}, clientFactory(client), fastPolicy(), testLogger())
	err := job.Run(context.Background(), reviewEvent())
	require.Error(t, err)

	// No retry for a PR that no longer exists.
	assert.Equal(t, 1, client.diffCalls)
	assert.Equal(t, core.ReviewFailed, store.reviews[1].Status)
	assert.Empty(t, client.comments)

	for _, record := range store.jobs {
		assert.Equal(t, JobFailed, record.Status)
	}
}

func TestReviewJobUnknownRepository(t *testing.T) {
	store := newFakeReviewStore()
	job := NewReviewJob(store, &fakeGate{allowed: true}, &fakeRetriever{}, &fakeGenerator{output: "x"}, clientFactory(&fakeHostClient{}), fastPolicy(), testLogger())

	err := job.Run(context.Background(), reviewEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRepositoryNotFound)
	assert.Empty(t, store.jobs)
	assert.Empty(t, store.reviews)
}

func TestReviewJobFailedReviewKeepsFirstTerminalStatus(t *testing.T) {
	store := seededReviewStore()
	gate := &fakeGate{allowed: true}
	client := &fakeHostClient{diff: &core.PullRequestDiff{Diff: "diff"}}
	// All attempts fail; the review must end FAILED exactly once.
	gen := &fakeGenerator{failures: 100}

	job := NewReviewJob(store, gate, &fakeRetriever{}, gen, clientFactory(client), fastPolicy(), testLogger())
	err := job.Run(context.Background(), reviewEvent())
	require.Error(t, err)

	assert.Equal(t, core.ReviewFailed, store.reviews[1].Status)
	// A second terminal write is rejected by the store.
	mErr := store.MarkReviewCompleted(context.Background(), 1)
	assert.ErrorIs(t, mErr, storage.ErrReviewTerminal)
}
