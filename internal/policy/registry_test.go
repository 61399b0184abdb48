package policy

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/perimeterhq/gatehouse/internal/models"
	"github.com/perimeterhq/gatehouse/internal/request"
)

func TestRegistry_Resolve(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(DefaultLimits())

	tests := []struct {
		path     string
		expected string
	}{
		{"/api/v1/auth/login", NameLogin},
		{"/api/v1/auth/password-reset", NameLogin},
		{"/api/v1/forms/contact", NameForm},
		{"/api/v1/items", NameAPI},
		{"/api/v1/admin/settings", NameAPI},
		{"/", NameAPI},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			t.Parallel()

			if got := reg.Resolve(tt.path); got.Name != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.path, got.Name, tt.expected)
			}
		})
	}
}

func TestDefaultLimits(t *testing.T) {
	t.Parallel()

	l := DefaultLimits()
	if l.API.Limit != 100 || l.API.Window != 15*time.Minute {
		t.Errorf("API quota = %+v, want 100/15m", l.API)
	}
	if l.Login.Limit != 5 || l.Login.Window != 15*time.Minute {
		t.Errorf("Login quota = %+v, want 5/15m", l.Login)
	}
	if l.Form.Limit != 3 || l.Form.Window != time.Minute {
		t.Errorf("Form quota = %+v, want 3/1m", l.Form)
	}
}

func TestPolicy_Key(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(DefaultLimits())
	if got := reg.Lookup(NameLogin).Key("10.0.0.1"); got != "login:10.0.0.1" {
		t.Errorf("Key = %q, want %q", got, "login:10.0.0.1")
	}
}

func TestPolicy_RetryAfterHint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		window   time.Duration
		expected string
	}{
		{15 * time.Minute, "15 minutes"},
		{time.Minute, "1 minute"},
		{30 * time.Second, "30 seconds"},
		{time.Second, "1 second"},
	}

	for _, tt := range tests {
		p := &Policy{Quota: Quota{Limit: 1, Window: tt.window}}
		if got := p.RetryAfterHint(); got != tt.expected {
			t.Errorf("RetryAfterHint(%v) = %q, want %q", tt.window, got, tt.expected)
		}
	}
}

func TestPolicy_RejectBody(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(DefaultLimits())

	login := reg.Lookup(NameLogin).RejectBody()
	m, ok := login.(map[string]string)
	if !ok {
		t.Fatalf("login RejectBody = %T, want map[string]string", login)
	}
	if m["retryAfter"] != "15 minutes" {
		t.Errorf("login retryAfter = %q, want %q", m["retryAfter"], "15 minutes")
	}
	if m["error"] == "" {
		t.Error("login RejectBody missing error message")
	}

	form := reg.Lookup(NameForm).RejectBody()
	fm, ok := form.(map[string]any)
	if !ok {
		t.Fatalf("form RejectBody = %T, want map[string]any", form)
	}
	if fm["success"] != false {
		t.Errorf("form success = %v, want false", fm["success"])
	}
	if _, hasRetry := fm["retryAfter"]; hasRetry {
		t.Error("form RejectBody must not carry retryAfter")
	}
}

func TestSkipPredicates(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(DefaultLimits())
	session := &models.Session{Subject: "u-1", Username: "alice"}

	t.Run("login skipped when authenticated", func(t *testing.T) {
		t.Parallel()

		r := httptest.NewRequest("POST", "/api/v1/auth/login", nil)
		login := reg.Lookup(NameLogin)
		if login.Skip(r) {
			t.Error("login must not be skipped without a session")
		}

		r = r.WithContext(request.WithSession(context.Background(), session))
		if !login.Skip(r) {
			t.Error("login must be skipped for an authenticated session")
		}
	})

	t.Run("api skipped only on admin paths with session", func(t *testing.T) {
		t.Parallel()

		api := reg.Lookup(NameAPI)

		r := httptest.NewRequest("GET", "/api/v1/admin/settings", nil)
		if api.Skip(r) {
			t.Error("admin path without session must not be skipped")
		}

		r = r.WithContext(request.WithSession(context.Background(), session))
		if !api.Skip(r) {
			t.Error("authenticated admin path must be skipped")
		}

		r = httptest.NewRequest("GET", "/api/v1/items", nil).
			WithContext(request.WithSession(context.Background(), session))
		if api.Skip(r) {
			t.Error("non-admin path must not be skipped even when authenticated")
		}
	})

	t.Run("form never skipped", func(t *testing.T) {
		t.Parallel()

		if skip := reg.Lookup(NameForm).Skip; skip != nil {
			t.Error("form policy must have no skip predicate")
		}
	})
}
