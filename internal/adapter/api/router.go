package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/V4T54L/ghostlog/internal/adapter/api/handler"
	"github.com/V4T54L/ghostlog/internal/adapter/api/middleware"
	"github.com/V4T54L/ghostlog/internal/adapter/metrics"
	"github.com/V4T54L/ghostlog/internal/domain"
	"github.com/V4T54L/ghostlog/internal/pkg/config"
)

// NewRouter creates and configures the main HTTP router for the ingest service.
// A nil apiKeyRepo leaves the ingest endpoint unauthenticated; a nil
// broker disables the /events feed.
func NewRouter(
	cfg *config.Config,
	logger *slog.Logger,
	apiKeyRepo domain.APIKeyRepository,
	ingestUseCase handler.BatchIngester,
	queryUseCase handler.LogQuerier,
	broker *handler.SSEBroker,
	m *metrics.IngestMetrics,
) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Logging(logger))

	ingestHandler := handler.NewIngestHandler(ingestUseCase, logger, cfg.MaxBatchSize, m)
	logsHandler := handler.NewLogsHandler(queryUseCase, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if apiKeyRepo != nil {
				r.Use(middleware.Auth(apiKeyRepo, logger, m))
			}
			r.Method(http.MethodPost, "/logs/ingest", ingestHandler)
		})

		r.Get("/logs", logsHandler.List)
		r.Get("/logs/{id}", logsHandler.Get)
		r.Delete("/logs/{id}", logsHandler.Delete)
		r.Get("/health", logsHandler.Health)
	})

	if broker != nil {
		r.Method(http.MethodGet, "/events", broker)
	}

	return r
}
