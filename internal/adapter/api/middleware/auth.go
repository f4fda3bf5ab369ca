package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/V4T54L/ghostlog/internal/adapter/metrics"
	"github.com/V4T54L/ghostlog/internal/domain"
)

const APIKeyHeader = "X-API-Key"

// apiKey returns the key from X-API-Key, falling back to an
// "Authorization: Bearer" header used by log shippers.
func apiKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

// Auth rejects requests that do not carry an active API key. A failing
// key lookup is a 503 so clients retry instead of treating it as a bad key.
func Auth(repo domain.APIKeyRepository, logger *slog.Logger, m *metrics.IngestMetrics) func(http.Handler) http.Handler {
	logger = logger.With("component", "auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := logger.With("request_id", chimw.GetReqID(r.Context()), "remote_addr", r.RemoteAddr)

			key := apiKey(r)
			if key == "" {
				m.ObserveAuth("missing")
				log.Warn("API key missing from request")
				http.Error(w, "Unauthorized: API key required", http.StatusUnauthorized)
				return
			}

			valid, err := repo.IsValid(r.Context(), key)
			if err != nil {
				m.ObserveAuth("error")
				log.Error("failed to validate API key", "error", err)
				http.Error(w, "Service Unavailable: cannot verify API key", http.StatusServiceUnavailable)
				return
			}
			if !valid {
				m.ObserveAuth("invalid")
				log.Warn("invalid API key provided")
				http.Error(w, "Unauthorized: Invalid API key", http.StatusUnauthorized)
				return
			}

			m.ObserveAuth("accepted")
			next.ServeHTTP(w, r)
		})
	}
}
