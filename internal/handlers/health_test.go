package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(_ context.Context) error { return f.err }

func TestHealthCheck_Basic(t *testing.T) {
	t.Parallel()

	h := NewHealthChecker(nil, nil)

	req := httptest.NewRequest("GET", "/healthz", nil)
	w := httptest.NewRecorder()
	h.HealthCheck(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %q, want healthy", resp.Status)
	}
	if resp.Checks != nil {
		t.Error("Basic mode must not include checks")
	}
}

func TestHealthCheck_ExtendedSkipsAbsent(t *testing.T) {
	t.Parallel()

	h := NewHealthChecker(nil, nil)

	req := httptest.NewRequest("GET", "/healthz?mode=extended", nil)
	w := httptest.NewRecorder()
	h.HealthCheck(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Checks["database"] != "skipped" {
		t.Errorf("database check = %q, want skipped", resp.Checks["database"])
	}
	if resp.Checks["store"] != "skipped" {
		t.Errorf("store check = %q, want skipped", resp.Checks["store"])
	}
}

func TestHealthCheck_ExtendedStoreStates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		pinger     Pinger
		wantStatus int
		wantCheck  string
	}{
		{"healthy store", fakePinger{}, http.StatusOK, "healthy"},
		{"unhealthy store", fakePinger{err: errors.New("connection refused")}, http.StatusServiceUnavailable, "unhealthy: connection refused"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewHealthChecker(nil, tt.pinger)

			req := httptest.NewRequest("GET", "/healthz?mode=extended", nil)
			w := httptest.NewRecorder()
			h.HealthCheck(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			var resp HealthResponse
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if resp.Checks["store"] != tt.wantCheck {
				t.Errorf("store check = %q, want %q", resp.Checks["store"], tt.wantCheck)
			}
		})
	}
}

func TestVersionInfo(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	VersionInfo(w, httptest.NewRequest("GET", "/version", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp["service"] != "gatehouse" {
		t.Errorf("service = %q, want gatehouse", resp["service"])
	}
	if resp["version"] == "" {
		t.Error("Expected a version string")
	}
}
