package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/V4T54L/ghostlog/internal/adapter/repository/memory"
	"github.com/V4T54L/ghostlog/internal/domain"
	"github.com/V4T54L/ghostlog/internal/usecase"
)

func seededLogsRouter(t *testing.T) (http.Handler, *memory.LogRepository) {
	t.Helper()
	repo := memory.NewLogRepository()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	seed := []domain.Record{
		domain.ErrorRecord{
			Header:   domain.Header{ID: "e1", Message: "db down", Source: "api", Timestamp: base},
			Severity: domain.SeverityFatal,
		},
		domain.AuditRecord{
			Header: domain.Header{ID: "a1", Message: "login", Source: "auth", Timestamp: base.Add(time.Second)},
			UserID: "u1",
			Action: "LOGIN",
		},
		domain.MetricRecord{
			Header:     domain.Header{ID: "m1", Message: "cpu", Source: "api", Timestamp: base.Add(2 * time.Second)},
			MetricName: "cpu",
			Value:      0.9,
		},
	}
	for _, rec := range seed {
		if err := repo.Save(context.Background(), rec); err != nil {
			t.Fatal(err)
		}
	}

	h := NewLogsHandler(usecase.NewQueryLogsUseCase(repo, discardLogger()), discardLogger())
	h.now = func() time.Time { return base }

	r := chi.NewRouter()
	r.Get("/api/v1/health", h.Health)
	r.Get("/api/v1/logs", h.List)
	r.Get("/api/v1/logs/{id}", h.Get)
	r.Delete("/api/v1/logs/{id}", h.Delete)
	return r, repo
}

func TestLogsHandler(t *testing.T) {
	tests := []struct {
		name           string
		method         string
		target         string
		expectedStatus int
		expectedIDs    []string
	}{
		{name: "List all", method: http.MethodGet, target: "/api/v1/logs", expectedStatus: http.StatusOK, expectedIDs: []string{"e1", "a1", "m1"}},
		{name: "List by source", method: http.MethodGet, target: "/api/v1/logs?source=api", expectedStatus: http.StatusOK, expectedIDs: []string{"e1", "m1"}},
		{name: "List by unknown source", method: http.MethodGet, target: "/api/v1/logs?source=nobody", expectedStatus: http.StatusOK, expectedIDs: []string{}},
		{name: "Blank source", method: http.MethodGet, target: "/api/v1/logs?source=%20", expectedStatus: http.StatusBadRequest},
		{name: "Get existing", method: http.MethodGet, target: "/api/v1/logs/a1", expectedStatus: http.StatusOK, expectedIDs: []string{"a1"}},
		{name: "Get unknown", method: http.MethodGet, target: "/api/v1/logs/missing", expectedStatus: http.StatusNotFound},
		{name: "Delete", method: http.MethodDelete, target: "/api/v1/logs/e1", expectedStatus: http.StatusNoContent},
		{name: "Delete unknown", method: http.MethodDelete, target: "/api/v1/logs/missing", expectedStatus: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := seededLogsRouter(t)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.target, nil))

			if rr.Code != tt.expectedStatus {
				t.Fatalf("got status %d want %d (body %q)", rr.Code, tt.expectedStatus, rr.Body.String())
			}
			if tt.expectedIDs == nil {
				return
			}

			var ids []string
			if len(tt.expectedIDs) == 1 && tt.method == http.MethodGet && tt.target != "/api/v1/logs" {
				rec, err := domain.UnmarshalRecord(rr.Body.Bytes())
				if err != nil {
					t.Fatalf("decode record: %v", err)
				}
				ids = append(ids, rec.Meta().ID)
			} else {
				var raws []json.RawMessage
				if err := json.Unmarshal(rr.Body.Bytes(), &raws); err != nil {
					t.Fatalf("decode list: %v", err)
				}
				ids = make([]string, 0, len(raws))
				for _, raw := range raws {
					rec, err := domain.UnmarshalRecord(raw)
					if err != nil {
						t.Fatalf("decode record: %v", err)
					}
					ids = append(ids, rec.Meta().ID)
				}
			}
			if len(ids) != len(tt.expectedIDs) {
				t.Fatalf("got ids %v want %v", ids, tt.expectedIDs)
			}
			for i := range ids {
				if ids[i] != tt.expectedIDs[i] {
					t.Errorf("got ids %v want %v", ids, tt.expectedIDs)
					break
				}
			}
		})
	}
}

func TestLogsHandler_DeleteRemovesRecord(t *testing.T) {
	router, repo := seededLogsRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/logs/m1", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if _, err := repo.FindByID(context.Background(), "m1"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected record to be gone, got %v", err)
	}
}

func TestLogsHandler_Health(t *testing.T) {
	router, _ := seededLogsRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "UP" || body["message"] != "Ghost Logger is running" {
		t.Errorf("unexpected health body %v", body)
	}
	if body["timestamp"] != "2026-03-01T12:00:00Z" {
		t.Errorf("unexpected timestamp %q", body["timestamp"])
	}
}
