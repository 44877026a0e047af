package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Abhijit1102/githawk/internal/core"
	"github.com/Abhijit1102/githawk/internal/service"
)

// APIHandler serves the JSON API used by the CLI and the dashboard.
type APIHandler struct {
	service *service.Service
	logger  *slog.Logger
}

// NewAPIHandler creates the JSON API handler.
func NewAPIHandler(svc *service.Service, logger *slog.Logger) *APIHandler {
	return &APIHandler{service: svc, logger: logger}
}

type connectRequest struct {
	UserID string `json:"userId"`
	Owner  string `json:"owner"`
	Name   string `json:"name"`
}

type reviewRequest struct {
	UserID   string `json:"userId"`
	Owner    string `json:"owner"`
	Name     string `json:"name"`
	PRNumber int    `json:"prNumber"`
}

// ConnectRepository handles POST /repositories.
func (h *APIHandler) ConnectRepository(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Owner == "" || req.Name == "" {
		h.respondError(w, http.StatusBadRequest, "userId, owner and name are required")
		return
	}

	repo, err := h.service.ConnectRepository(r.Context(), req.UserID, req.Owner, req.Name)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusCreated, repo)
}

// DisconnectRepository handles DELETE /repositories/{owner}/{name}.
func (h *APIHandler) DisconnectRepository(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		h.respondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")
	if err := h.service.DisconnectRepository(r.Context(), userID, owner, name); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

// RequestReview handles POST /reviews. The review runs asynchronously; a
// 202 means it was queued, not that it succeeded.
func (h *APIHandler) RequestReview(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Owner == "" || req.Name == "" || req.PRNumber <= 0 {
		h.respondError(w, http.StatusBadRequest, "owner, name and a positive prNumber are required")
		return
	}

	if err := h.service.RequestReview(r.Context(), req.UserID, req.Owner, req.Name, req.PRNumber); err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

// ListReviews handles GET /repositories/{owner}/{name}/reviews.
func (h *APIHandler) ListReviews(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	name := chi.URLParam(r, "name")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			h.respondError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	reviews, err := h.service.ListReviews(r.Context(), owner, name, limit)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	if reviews == nil {
		reviews = []core.Review{}
	}
	h.respondJSON(w, http.StatusOK, reviews)
}

// Stats handles GET /users/{userID}/stats.
func (h *APIHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	stats, err := h.service.Stats(r.Context(), userID)
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, stats)
}

func (h *APIHandler) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrRepositoryNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrAlreadyConnected):
		h.respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrRepositoryLimit):
		h.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotOwner), errors.Is(err, core.ErrUnauthorized):
		h.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, core.ErrNoCredential):
		h.respondError(w, http.StatusUnauthorized, err.Error())
	default:
		h.logger.Error("request failed", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *APIHandler) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *APIHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
