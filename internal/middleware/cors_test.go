package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/perimeterhq/gatehouse/internal/events"
	"github.com/perimeterhq/gatehouse/internal/origin"
)

func newCORSHandler(sink events.Sink) http.Handler {
	allow := origin.NewAllowList([]string{"https://app.example.com"}, false)
	return CORS(allow, sink, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCORS_PreflightAllowed(t *testing.T) {
	t.Parallel()

	handler := newCORSHandler(events.NopSink{})

	req := httptest.NewRequest("OPTIONS", "/api/v1/things", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	// 200 rather than 204 for legacy clients.
	if w.Code != http.StatusOK {
		t.Errorf("Preflight status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want the requesting origin", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
	}
}

func TestCORS_PreflightBlocked(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	handler := newCORSHandler(sink)

	req := httptest.NewRequest("OPTIONS", "/api/v1/things", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("X-Forwarded-For", "10.9.8.7")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("Access-Control-Allow-Origin = %q, want unset for blocked origin", got)
	}

	evts := sink.all()
	if len(evts) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(evts))
	}
	if evts[0].Name != events.CORSBlocked {
		t.Errorf("event = %q, want %q", evts[0].Name, events.CORSBlocked)
	}
	if evts[0].IP != "10.9.8.7" {
		t.Errorf("event ip = %q, want 10.9.8.7", evts[0].IP)
	}
}

func TestCORS_ActualRequestAllowed(t *testing.T) {
	t.Parallel()

	handler := newCORSHandler(events.NopSink{})

	req := httptest.NewRequest("GET", "/api/v1/things", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}
}

func TestCORS_NoOriginHeader(t *testing.T) {
	t.Parallel()

	sink := &recordingSink{}
	handler := newCORSHandler(sink)

	// Same-origin and non-browser requests carry no Origin header and
	// pass through untouched.
	req := httptest.NewRequest("GET", "/api/v1/things", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if len(sink.all()) != 0 {
		t.Error("Absent origin must not emit a blocked event")
	}
}
