// Package origin holds the single origin allow-list shared by the CORS
// and WebSocket enforcement points, so the two can never drift apart.
package origin

import (
	"net/http"
	"strings"
)

// DefaultOrigin is the fallback allowed origin when none are configured.
const DefaultOrigin = "http://localhost:3000"

// AllowList is an immutable set of allowed origins plus the environment
// mode. Construct it once at startup and share it between call sites.
type AllowList struct {
	origins []string
	devMode bool
}

// NewAllowList creates an allow-list from explicit origins. Empty and
// duplicate entries are dropped; when no origins remain, DefaultOrigin
// is used.
func NewAllowList(origins []string, devMode bool) *AllowList {
	var cleaned []string
	for _, o := range origins {
		trimmed := strings.TrimSpace(o)
		if trimmed == "" {
			continue
		}
		exists := false
		for _, existing := range cleaned {
			if existing == trimmed {
				exists = true
				break
			}
		}
		if !exists {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		cleaned = []string{DefaultOrigin}
	}
	return &AllowList{origins: cleaned, devMode: devMode}
}

// FromEnv creates an allow-list from a comma-separated origin string,
// e.g. the value of ALLOWED_ORIGINS.
func FromEnv(raw string, devMode bool) *AllowList {
	return NewAllowList(strings.Split(raw, ","), devMode)
}

// IsAllowed reports whether the given Origin header value is permitted.
// An absent origin (empty string) is always allowed: same-origin tooling
// and non-browser clients send no Origin header. In development mode any
// origin containing "localhost" is allowed even if not listed.
func (a *AllowList) IsAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range a.origins {
		if origin == allowed {
			return true
		}
	}
	if a.devMode && strings.Contains(origin, "localhost") {
		return true
	}
	return false
}

// AllowRequest applies IsAllowed to the request's Origin header.
func (a *AllowList) AllowRequest(r *http.Request) bool {
	return a.IsAllowed(r.Header.Get("Origin"))
}

// Origins returns a copy of the configured origins.
func (a *AllowList) Origins() []string {
	out := make([]string, len(a.origins))
	copy(out, a.origins)
	return out
}

// DevMode reports whether the development-mode carve-out is active.
func (a *AllowList) DevMode() bool {
	return a.devMode
}
