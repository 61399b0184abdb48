package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/perimeterhq/gatehouse/internal/events"
	logpkg "github.com/perimeterhq/gatehouse/internal/logger"
	"github.com/perimeterhq/gatehouse/internal/policy"
	"github.com/perimeterhq/gatehouse/internal/ratelimit"
	"github.com/perimeterhq/gatehouse/internal/request"
)

// unlimitedPaths are never rate limited.
var unlimitedPaths = map[string]bool{
	"/healthz": true,
	"/version": true,
}

// maxUsernameProbe caps how much of a rejected login body is read to
// recover the attempted username for the audit event.
const maxUsernameProbe = 4 << 10 // 4KB

// RateLimit creates rate limiting middleware. The registry picks the
// policy for each request; the limiter does the per-key accounting.
// Store errors fail open: availability over strictness.
func RateLimit(reg *policy.Registry, limiter *ratelimit.Limiter, sink events.Sink, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if unlimitedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			pol := reg.Resolve(r.URL.Path)

			// Skipped requests bypass accounting entirely.
			if pol.Skip != nil && pol.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := pol.Key(request.ClientIP(r))
			res, err := limiter.Admit(r.Context(), key, pol.Quota.Limit, pol.Quota.Window, time.Now())
			if err != nil {
				logger.Warn("rate_limit_store_error_failing_open",
					zap.String("policy", pol.Name),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retryAfter := int(time.Until(res.ResetAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))

				emitRejection(sink, pol, r)
				respondRejection(w, pol, logger)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// emitRejection sends the structured warning for a rejected request.
// Best-effort: the sink never blocks or fails the response.
func emitRejection(sink events.Sink, pol *policy.Policy, r *http.Request) {
	e := events.Event{
		Name:      pol.Event,
		IP:        request.ClientIP(r),
		Path:      r.URL.Path,
		UserAgent: r.UserAgent(),
	}
	if pol.Name == policy.NameLogin {
		// Record who was being attempted, never the credentials.
		e.Username = loginUsername(r)
	}
	sink.Emit(e)
}

func respondRejection(w http.ResponseWriter, pol *policy.Policy, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	if err := json.NewEncoder(w).Encode(pol.RejectBody()); err != nil {
		logger.Error("failed_to_encode_rate_limit_response",
			zap.String("policy", pol.Name),
			zap.Error(err),
		)
	}
}

// loginUsername extracts the attempted username from a login request
// body without consuming it. Only identity fields are read; password
// fields are never touched.
func loginUsername(r *http.Request) string {
	if r.Body == nil {
		return ""
	}
	buf, err := io.ReadAll(io.LimitReader(r.Body, maxUsernameProbe))
	if err != nil {
		return ""
	}
	r.Body = io.NopCloser(io.MultiReader(bytes.NewReader(buf), r.Body))

	var payload map[string]any
	if err := json.Unmarshal(buf, &payload); err != nil {
		return ""
	}
	for _, field := range []string{"username", "email"} {
		if v, ok := payload[field].(string); ok && v != "" {
			return logpkg.SanitizeString(v, logpkg.MaxUserIDLength)
		}
	}
	return ""
}
