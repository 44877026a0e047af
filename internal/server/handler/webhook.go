// Package handler provides the HTTP handlers for the Githawk API.
package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/go-github/v73/github"

	"github.com/Abhijit1102/githawk/internal/service"
)

// WebhookHandler processes incoming webhooks from GitHub.
type WebhookHandler struct {
	secret  []byte
	service *service.Service
	logger  *slog.Logger
}

// NewWebhookHandler creates a webhook handler that verifies deliveries with
// the shared secret before acting on them.
func NewWebhookHandler(secret string, svc *service.Service, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{secret: []byte(secret), service: svc, logger: logger}
}

// Handle processes GitHub webhook requests. Signature failures are the only
// rejections; deliveries we do not act on still get a 2xx so the host does
// not disable the hook.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := github.ValidatePayload(r, h.secret)
	if err != nil {
		h.logger.Error("invalid webhook payload signature", "error", err)
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	event, err := github.ParseWebHook(github.WebHookType(r), payload)
	if err != nil {
		h.logger.Error("could not parse webhook", "error", err)
		http.Error(w, "Could not parse webhook", http.StatusBadRequest)
		return
	}

	switch e := event.(type) {
	case *github.PullRequestEvent:
		if err := h.service.HandlePullRequestEvent(r.Context(), e); err != nil {
			h.logger.Error("failed to queue review job", "repo", e.GetRepo().GetFullName(), "error", err)
			http.Error(w, "Failed to queue review job", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusAccepted)
		_, _ = fmt.Fprint(w, "Accepted")
	default:
		h.logger.Debug("ignoring unhandled webhook event type", "type", github.WebHookType(r))
		_, _ = fmt.Fprint(w, "Event type not handled")
	}
}
