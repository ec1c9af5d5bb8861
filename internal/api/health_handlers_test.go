package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type stubChecker struct {
	err error
}

func (s stubChecker) HealthCheck(ctx context.Context) error { return s.err }

func doHealth(t *testing.T, h http.HandlerFunc, target string) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h(w, r)

	var resp HealthResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return w, resp
}

func TestHealth(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersConfig{})

	w, resp := doHealth(t, h.Health, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Checks["runtime"] != "ok" {
		t.Errorf("runtime check = %q, want ok", resp.Checks["runtime"])
	}
	if resp.Timestamp == "" {
		t.Error("expected a timestamp")
	}
}

func TestReady(t *testing.T) {
	tests := []struct {
		name       string
		db         HealthChecker
		redis      HealthChecker
		wantStatus int
		wantState  string
	}{
		{"no checkers configured", nil, nil, http.StatusOK, "healthy"},
		{"all healthy", stubChecker{}, stubChecker{}, http.StatusOK, "healthy"},
		{"database down", stubChecker{err: errors.New("refused")}, stubChecker{}, http.StatusServiceUnavailable, "unhealthy"},
		{"redis down is non-critical", stubChecker{}, stubChecker{err: errors.New("refused")}, http.StatusOK, "healthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandlers(HealthHandlersConfig{
				DBChecker:    tt.db,
				RedisChecker: tt.redis,
			})

			w, resp := doHealth(t, h.Ready, "/ready")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if resp.Status != tt.wantState {
				t.Errorf("status = %q, want %q", resp.Status, tt.wantState)
			}
		})
	}
}

func TestReady_RedisDegradedCheckValue(t *testing.T) {
	h := NewHealthHandlers(HealthHandlersConfig{
		DBChecker:    stubChecker{},
		RedisChecker: stubChecker{err: errors.New("refused")},
	})

	_, resp := doHealth(t, h.Ready, "/ready")
	if resp.Checks["redis"] != "degraded" {
		t.Errorf("redis check = %q, want degraded", resp.Checks["redis"])
	}
	if resp.Checks["database"] != "ok" {
		t.Errorf("database check = %q, want ok", resp.Checks["database"])
	}
}
