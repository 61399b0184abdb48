// Package events delivers structured security warnings (rate-limit
// rejections, blocked origins) to observability sinks. Emission is
// best-effort: the request path never blocks on, or fails because of,
// a sink.
package events

import (
	logpkg "github.com/perimeterhq/gatehouse/internal/logger"
	"go.uber.org/zap"
)

// Event names.
const (
	RateLimitExceeded      = "rate_limit_exceeded"
	LoginRateLimitExceeded = "login_rate_limit_exceeded"
	FormRateLimitExceeded  = "form_rate_limit_exceeded"
	CORSBlocked            = "cors_blocked"
)

// Event is one structured security warning.
type Event struct {
	Name      string `json:"event"`
	IP        string `json:"ip"`
	Path      string `json:"path"`
	UserAgent string `json:"userAgent,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Sink consumes events. Implementations must not block and must
// swallow their own failures.
type Sink interface {
	Emit(e Event)
}

// LogSink writes events as zap warnings.
type LogSink struct {
	log *zap.Logger
}

// NewLogSink creates a logger-backed sink.
func NewLogSink(log *zap.Logger) *LogSink {
	return &LogSink{log: log}
}

// Emit implements Sink.
func (s *LogSink) Emit(e Event) {
	fields := []zap.Field{
		zap.String("ip", logpkg.SanitizeString(e.IP, logpkg.MaxGeneralStringLength)),
		zap.String("path", logpkg.SanitizePath(e.Path)),
		zap.String("user_agent", logpkg.SanitizeString(e.UserAgent, logpkg.MaxGeneralStringLength)),
	}
	if e.Username != "" {
		fields = append(fields, zap.String("username", logpkg.SanitizeString(e.Username, logpkg.MaxUserIDLength)))
	}
	s.log.Warn(e.Name, fields...)
}

// NopSink discards events.
type NopSink struct{}

// Emit implements Sink.
func (NopSink) Emit(Event) {}

type multiSink struct {
	sinks []Sink
}

// Multi fans events out to several sinks.
func Multi(sinks ...Sink) Sink {
	return &multiSink{sinks: sinks}
}

// Emit implements Sink.
func (m *multiSink) Emit(e Event) {
	for _, s := range m.sinks {
		s.Emit(e)
	}
}
