package core

import (
	"testing"

	"github.com/google/go-github/v73/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventValidate(t *testing.T) {
	tests := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{
			name:  "valid index event",
			event: Event{Name: EventRepositoryConnected, Owner: "o", Repo: "r", UserID: "u"},
		},
		{
			name:  "valid review event",
			event: Event{Name: EventPRReviewRequested, Owner: "o", Repo: "r", PRNumber: 1, UserID: "u"},
		},
		{
			name:    "review event without pr number",
			event:   Event{Name: EventPRReviewRequested, Owner: "o", Repo: "r", UserID: "u"},
			wantErr: true,
		},
		{
			name:    "missing owner",
			event:   Event{Name: EventRepositoryConnected, Repo: "r", UserID: "u"},
			wantErr: true,
		},
		{
			name:    "missing user",
			event:   Event{Name: EventRepositoryConnected, Owner: "o", Repo: "r"},
			wantErr: true,
		},
		{
			name:    "unknown event name",
			event:   Event{Name: "repository.deleted", Owner: "o", Repo: "r", UserID: "u"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func prEvent(action string, number int) *github.PullRequestEvent {
	return &github.PullRequestEvent{
		Action: github.Ptr(action),
		Repo: &github.Repository{
			Name:  github.Ptr("hello-world"),
			Owner: &github.User{Login: github.Ptr("octocat")},
		},
		PullRequest: &github.PullRequest{Number: github.Ptr(number)},
	}
}

func TestEventFromPullRequest(t *testing.T) {
	event, err := EventFromPullRequest(prEvent("opened", 7), "u-1")
	require.NoError(t, err)
	assert.Equal(t, EventPRReviewRequested, event.Name)
	assert.Equal(t, "octocat", event.Owner)
	assert.Equal(t, "hello-world", event.Repo)
	assert.Equal(t, 7, event.PRNumber)
	assert.Equal(t, "u-1", event.UserID)
	assert.Equal(t, "octocat/hello-world", event.FullName())

	_, err = EventFromPullRequest(prEvent("synchronize", 7), "u-1")
	assert.NoError(t, err)
}

func TestEventFromPullRequestIgnoredActions(t *testing.T) {
	for _, action := range []string{"closed", "edited", "labeled", "reopened"} {
		_, err := EventFromPullRequest(prEvent(action, 7), "u-1")
		assert.Error(t, err, "action %q must not request a review", action)
	}
}

func TestEventFromPullRequestInvalidPayload(t *testing.T) {
	_, err := EventFromPullRequest(&github.PullRequestEvent{Action: github.Ptr("opened")}, "u-1")
	assert.Error(t, err)

	_, err = EventFromPullRequest(prEvent("opened", 0), "u-1")
	assert.Error(t, err)

	_, err = EventFromPullRequest(prEvent("opened", 7), "")
	assert.Error(t, err)
}
