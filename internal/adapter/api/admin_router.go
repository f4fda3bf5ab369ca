package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/V4T54L/ghostlog/internal/adapter/api/handler"
)

// NewAdminRouter creates the router for the admin server: metrics, health
// and buffer stream administration.
func NewAdminRouter(adminUseCase handler.StreamAdmin, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	adminHandler := handler.NewAdminHandler(adminUseCase, logger)

	r.Get("/health", adminHandler.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/admin/streams/{streamName}", func(r chi.Router) {
		r.Post("/trim", adminHandler.TrimStream)

		r.Get("/groups", adminHandler.GetGroupInfo)
		r.Route("/groups/{groupName}", func(r chi.Router) {
			r.Get("/consumers", adminHandler.GetConsumerInfo)

			// Pending messages
			r.Get("/pending", adminHandler.GetPendingSummary)
			r.Get("/pending/messages", adminHandler.GetPendingMessages)

			r.Post("/claim", adminHandler.ClaimMessages)
			r.Post("/ack", adminHandler.AcknowledgeMessages)
		})
	})
	r.Post("/admin/dlq/requeue", adminHandler.RequeueDeadLetters)

	return r
}
