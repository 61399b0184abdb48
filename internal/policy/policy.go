// Package policy defines the named rate-limit policies and routes
// requests to them.
package policy

import (
	"fmt"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"
)

// Quota is a request ceiling over a fixed window.
type Quota struct {
	Limit  int           `yaml:"limit" validate:"gt=0"`
	Window time.Duration `yaml:"window" validate:"gt=0"`
}

// UnmarshalYAML decodes a quota whose window is a duration string like
// "15m". Absent fields keep their current values, so a partial policy
// file overlays the defaults.
func (q *Quota) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Limit  int    `yaml:"limit"`
		Window string `yaml:"window"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.Limit != 0 {
		q.Limit = raw.Limit
	}
	if raw.Window != "" {
		d, err := time.ParseDuration(raw.Window)
		if err != nil {
			return fmt.Errorf("invalid window %q: %w", raw.Window, err)
		}
		q.Window = d
	}
	return nil
}

// Limits holds the quotas for the three policies. Zero values are
// filled from defaults; see config.Limits.
type Limits struct {
	API   Quota `yaml:"api"`
	Login Quota `yaml:"login"`
	Form  Quota `yaml:"form"`
}

// DefaultLimits returns the built-in quotas: broad ceiling for general
// API traffic, a much lower one for authentication attempts, and a very
// low short-window one for form submissions.
func DefaultLimits() Limits {
	return Limits{
		API:   Quota{Limit: 100, Window: 15 * time.Minute},
		Login: Quota{Limit: 5, Window: 15 * time.Minute},
		Form:  Quota{Limit: 3, Window: time.Minute},
	}
}

// Policy is one named limiter configuration. Immutable after
// construction.
type Policy struct {
	// Name identifies the policy and prefixes rate keys.
	Name string
	// Quota is the ceiling and window for this policy.
	Quota Quota
	// Event is the observability event emitted on rejection.
	Event string
	// Skip reports whether rate-limit accounting is bypassed entirely
	// for this request. Nil means never skip.
	Skip func(r *http.Request) bool

	message   string
	formStyle bool
}

// Key namespaces a client identity under this policy so policies never
// share counters.
func (p *Policy) Key(clientID string) string {
	return p.Name + ":" + clientID
}

// RetryAfterHint is the human-readable retry hint for rejections,
// e.g. "15 minutes".
func (p *Policy) RetryAfterHint() string {
	return retryAfterHint(p.Quota.Window)
}

// RejectBody builds the JSON body for a 429 response. Form rejections
// use a {success, error} envelope; api and login rejections carry the
// retry hint. Callers depend on this asymmetry.
func (p *Policy) RejectBody() any {
	if p.formStyle {
		return map[string]any{
			"success": false,
			"error":   p.message,
		}
	}
	return map[string]string{
		"error":      p.message,
		"retryAfter": p.RetryAfterHint(),
	}
}

func retryAfterHint(window time.Duration) string {
	if window >= time.Minute {
		m := int(window.Minutes())
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	}
	s := int(window.Seconds())
	if s == 1 {
		return "1 second"
	}
	return fmt.Sprintf("%d seconds", s)
}
