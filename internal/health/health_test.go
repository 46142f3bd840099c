package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okCheck(context.Context) error { return nil }

func failingCheck(context.Context) error { return errors.New("service unavailable") }

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		checkers   map[string]*FuncChecker
		wantCode   int
		wantStatus Status
	}{
		{
			name:       "all healthy",
			checkers:   map[string]*FuncChecker{"storage": NewCriticalChecker("storage", okCheck)},
			wantCode:   http.StatusOK,
			wantStatus: StatusHealthy,
		},
		{
			name:       "critical failure",
			checkers:   map[string]*FuncChecker{"storage": NewCriticalChecker("storage", failingCheck), "kafka": NewOptionalChecker("kafka", okCheck)},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusUnhealthy,
		},
		{
			name:       "optional failure degrades",
			checkers:   map[string]*FuncChecker{"storage": NewCriticalChecker("storage", okCheck), "kafka": NewOptionalChecker("kafka", failingCheck)},
			wantCode:   http.StatusOK,
			wantStatus: StatusDegraded,
		},
		{
			name:       "no checkers",
			wantCode:   http.StatusOK,
			wantStatus: StatusHealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHandler("v1.0.0")
			for name, checker := range tt.checkers {
				handler.RegisterChecker(name, checker)
			}

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

			if w.Code != tt.wantCode {
				t.Fatalf("expected status %d, got %d", tt.wantCode, w.Code)
			}
			var response Response
			if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if response.Status != tt.wantStatus {
				t.Fatalf("expected %s, got %s", tt.wantStatus, response.Status)
			}
			if response.Version != "v1.0.0" {
				t.Fatalf("expected version v1.0.0, got %s", response.Version)
			}
			if len(response.Checks) != len(tt.checkers) {
				t.Fatalf("expected %d checks, got %d", len(tt.checkers), len(response.Checks))
			}
		})
	}
}

func TestHealthHandler_CheckTimeout(t *testing.T) {
	handler := NewHandler("dev")
	handler.timeout = 20 * time.Millisecond
	handler.RegisterChecker("slow", NewCriticalChecker("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}))

	response := handler.Evaluate(context.Background())
	if response.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", response.Status)
	}
	if response.Checks["slow"].Message == "" {
		t.Fatal("expected timeout message")
	}
}

func TestLivenessHandler(t *testing.T) {
	w := httptest.NewRecorder()
	LivenessHandler(w, httptest.NewRequest(http.MethodGet, "/livez", nil))

	if w.Code != http.StatusOK || w.Body.String() != "ok" {
		t.Fatalf("unexpected liveness response: %d %q", w.Code, w.Body.String())
	}
}

func TestReadinessHandler(t *testing.T) {
	handler := NewHandler("dev")
	handler.RegisterChecker("kafka", NewOptionalChecker("kafka", failingCheck))

	w := httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("degraded service must stay ready, got %d", w.Code)
	}

	handler.RegisterChecker("storage", NewCriticalChecker("storage", failingCheck))
	w = httptest.NewRecorder()
	handler.ReadinessHandler(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
}
