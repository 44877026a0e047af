// Package githost wraps the source-hosting API behind a focused, testable
// interface: file listing for indexing, pull-request diffs, review comments,
// and the webhook side channel used on connect/disconnect.
package githost

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"

	"github.com/Abhijit1102/githawk/internal/core"
)

// maxIndexableFileSize caps file content fetched for indexing. Larger blobs
// are almost always generated artifacts.
const maxIndexableFileSize = 512 * 1024

// Client defines the operations the review pipeline needs from the source
// host. Implementations are constructed per invocation with the acting
// user's token, never held as ambient singletons.
type Client interface {
	GetRepository(ctx context.Context, owner, repo string) (*core.Repository, error)
	ListRepositoryFiles(ctx context.Context, owner, repo string, repoCfg *core.RepoConfig) ([]core.RepoFile, error)
	GetPullRequestDiff(ctx context.Context, owner, repo string, prNumber int) (*core.PullRequestDiff, error)
	PostComment(ctx context.Context, owner, repo string, prNumber int, body string) error
	GetFileContent(ctx context.Context, owner, repo, path string) ([]byte, error)
	CreateWebhook(ctx context.Context, owner, repo, hookURL string) (int64, error)
	DeleteWebhook(ctx context.Context, owner, repo, hookURL string) (bool, error)
}

// ClientFactory builds a Client scoped to a single invocation's token.
type ClientFactory func(ctx context.Context, token string) Client

type hostClient struct {
	client *github.Client
	logger *slog.Logger
}

// NewClient builds a Client authenticated with the given access token.
func NewClient(ctx context.Context, token string, logger *slog.Logger) Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return &hostClient{client: github.NewClient(tc), logger: logger}
}

// mapError converts host API failures into the pipeline's error taxonomy.
// Not-found and auth failures are preconditions that waiting cannot fix.
func mapError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			return core.Permanent(fmt.Errorf("%w: %w", notFound, err))
		case http.StatusUnauthorized, http.StatusForbidden:
			return core.Permanent(fmt.Errorf("%w: %w", core.ErrUnauthorized, err))
		}
	}
	return err
}

// GetRepository fetches repository metadata from the host.
func (c *hostClient) GetRepository(ctx context.Context, owner, repo string) (*core.Repository, error) {
	repository, _, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, mapError(err, core.ErrRepositoryNotFound)
	}
	return &core.Repository{
		GitHubID: repository.GetID(),
		Owner:    repository.GetOwner().GetLogin(),
		Name:     repository.GetName(),
		FullName: repository.GetFullName(),
		URL:      repository.GetHTMLURL(),
	}, nil
}

// ListRepositoryFiles walks the default branch's tree and returns the text
// files eligible for indexing. Binary and excluded files are filtered here
// so the indexer only ever sees indexable content.
func (c *hostClient) ListRepositoryFiles(ctx context.Context, owner, repo string, repoCfg *core.RepoConfig) ([]core.RepoFile, error) {
	if repoCfg == nil {
		repoCfg = core.DefaultRepoConfig()
	}

	repository, _, err := c.client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, mapError(err, core.ErrRepositoryNotFound)
	}

	tree, _, err := c.client.Git.GetTree(ctx, owner, repo, repository.GetDefaultBranch(), true)
	if err != nil {
		return nil, mapError(err, core.ErrRepositoryNotFound)
	}

	var files []core.RepoFile
	skipped := 0
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		path := entry.GetPath()
		if !IsIndexablePath(path, repoCfg) || entry.GetSize() > maxIndexableFileSize {
			skipped++
			continue
		}

		content, _, err := c.client.Git.GetBlobRaw(ctx, owner, repo, entry.GetSHA())
		if err != nil {
			c.logger.Warn("failed to fetch file content, skipping", "repo", owner+"/"+repo, "path", path, "error", err)
			skipped++
			continue
		}
		if !utf8.Valid(content) {
			// Extension filter missed a binary file.
			skipped++
			continue
		}

		files = append(files, core.RepoFile{Path: path, Content: string(content)})
	}

	c.logger.Info("listed repository files", "repo", owner+"/"+repo, "indexable", len(files), "skipped", skipped)
	return files, nil
}

// GetPullRequestDiff retrieves a pull request's metadata and unified diff.
// Pure read; not-found and unauthorized surface as distinct permanent errors.
func (c *hostClient) GetPullRequestDiff(ctx context.Context, owner, repo string, prNumber int) (*core.PullRequestDiff, error) {
	pr, _, err := c.client.PullRequests.Get(ctx, owner, repo, prNumber)
	if err != nil {
		return nil, mapError(err, core.ErrPullRequestGone)
	}

	diff, _, err := c.client.PullRequests.GetRaw(ctx, owner, repo, prNumber, github.RawOptions{Type: github.Diff})
	if err != nil {
		return nil, mapError(err, core.ErrPullRequestGone)
	}

	return &core.PullRequestDiff{
		Diff:        diff,
		Title:       pr.GetTitle(),
		Description: pr.GetBody(),
	}, nil
}

// PostComment creates a comment on a pull request. The host does not
// deduplicate comments, so callers must enforce at-most-once themselves.
func (c *hostClient) PostComment(ctx context.Context, owner, repo string, prNumber int, body string) error {
	comment := &github.IssueComment{Body: &body}
	_, _, err := c.client.Issues.CreateComment(ctx, owner, repo, prNumber, comment)
	if err != nil {
		c.logger.Error("failed to create comment", "owner", owner, "repo", repo, "pr", prNumber, "error", err)
		return mapError(err, core.ErrPullRequestGone)
	}
	return nil
}

// GetFileContent fetches a single file from the default branch. A missing
// file returns nil content and no error.
func (c *hostClient) GetFileContent(ctx context.Context, owner, repo, path string) ([]byte, error) {
	fileContent, _, _, err := c.client.Repositories.GetContents(ctx, owner, repo, path, nil)
	if err != nil {
		var ghErr *github.ErrorResponse
		if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, mapError(err, core.ErrRepositoryNotFound)
	}
	if fileContent == nil {
		return nil, nil
	}
	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return []byte(content), nil
}

// CreateWebhook registers a pull_request webhook, reusing an existing hook
// pointed at the same URL instead of creating a duplicate.
func (c *hostClient) CreateWebhook(ctx context.Context, owner, repo, hookURL string) (int64, error) {
	hooks, _, err := c.client.Repositories.ListHooks(ctx, owner, repo, nil)
	if err != nil {
		return 0, mapError(err, core.ErrRepositoryNotFound)
	}
	for _, hook := range hooks {
		if hook.GetConfig().GetURL() == hookURL {
			return hook.GetID(), nil
		}
	}

	hook, _, err := c.client.Repositories.CreateHook(ctx, owner, repo, &github.Hook{
		Active: github.Ptr(true),
		Events: []string{"pull_request"},
		Config: &github.HookConfig{
			URL:         github.Ptr(hookURL),
			ContentType: github.Ptr("json"),
		},
	})
	if err != nil {
		return 0, mapError(err, core.ErrRepositoryNotFound)
	}
	return hook.GetID(), nil
}

// DeleteWebhook removes the hook pointed at hookURL if present. Returns
// whether a hook was deleted.
func (c *hostClient) DeleteWebhook(ctx context.Context, owner, repo, hookURL string) (bool, error) {
	hooks, _, err := c.client.Repositories.ListHooks(ctx, owner, repo, nil)
	if err != nil {
		return false, mapError(err, core.ErrRepositoryNotFound)
	}
	for _, hook := range hooks {
		if hook.GetConfig().GetURL() == hookURL {
			if _, err := c.client.Repositories.DeleteHook(ctx, owner, repo, hook.GetID()); err != nil {
				return false, mapError(err, core.ErrRepositoryNotFound)
			}
			return true, nil
		}
	}
	return false, nil
}

// binaryExtensions are never indexable regardless of repo configuration.
var binaryExtensions = map[string]struct{}{
	"png": {}, "jpg": {}, "jpeg": {}, "gif": {}, "svg": {}, "ico": {},
	"pdf": {}, "zip": {}, "tar": {}, "gz": {}, "woff": {}, "woff2": {},
	"ttf": {}, "eot": {}, "exe": {}, "so": {}, "dylib": {}, "bin": {},
}

// IsIndexablePath reports whether a file path should be fetched for
// indexing, applying the built-in binary filter plus repo-level excludes.
func IsIndexablePath(path string, repoCfg *core.RepoConfig) bool {
	if repoCfg == nil {
		repoCfg = core.DefaultRepoConfig()
	}

	for _, dir := range repoCfg.ExcludeDirs {
		if strings.HasPrefix(path, dir+"/") || strings.Contains(path, "/"+dir+"/") {
			return false
		}
	}

	ext := ""
	if idx := strings.LastIndex(path, "."); idx >= 0 {
		ext = strings.ToLower(path[idx+1:])
	}
	if _, ok := binaryExtensions[ext]; ok {
		return false
	}
	for _, excluded := range repoCfg.ExcludeExts {
		if ext == strings.ToLower(strings.TrimPrefix(excluded, ".")) {
			return false
		}
	}
	return true
}
