package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Abhijit1102/githawk/internal/config"
	"github.com/Abhijit1102/githawk/internal/server/handler"
	"github.com/Abhijit1102/githawk/internal/service"
)

// NewRouter creates and configures the HTTP router with middleware and API routes.
func NewRouter(cfg *config.Config, svc *service.Service, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// Configure middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		webhookHandler := handler.NewWebhookHandler(cfg.GitHubWebhookSecret, svc, logger)
		r.Post("/webhooks/github", webhookHandler.Handle)

		apiHandler := handler.NewAPIHandler(svc, logger)
		r.Post("/repositories", apiHandler.ConnectRepository)
		r.Delete("/repositories/{owner}/{name}", apiHandler.DisconnectRepository)
		r.Get("/repositories/{owner}/{name}/reviews", apiHandler.ListReviews)
		r.Post("/reviews", apiHandler.RequestReview)
		r.Get("/users/{userID}/stats", apiHandler.Stats)
	})

	return r
}
