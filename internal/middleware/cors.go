package middleware

import (
	"net/http"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/perimeterhq/gatehouse/internal/events"
	"github.com/perimeterhq/gatehouse/internal/origin"
	"github.com/perimeterhq/gatehouse/internal/request"
)

// CORS creates CORS middleware backed by the shared origin allow-list.
// The same allow-list value guards the WebSocket upgrade, so the two
// enforcement points cannot drift.
//
// Preflight success is 200, not 204, for legacy client compatibility.
func CORS(allow *origin.AllowList, sink events.Sink, logger *zap.Logger) func(http.Handler) http.Handler {
	logger.Info("cors_middleware_initialized",
		zap.Strings("allowed_origins", allow.Origins()),
		zap.Bool("dev_mode", allow.DevMode()),
	)

	c := cors.New(cors.Options{
		AllowOriginRequestFunc: func(r *http.Request, o string) bool {
			if allow.IsAllowed(o) {
				return true
			}
			sink.Emit(events.Event{
				Name:      events.CORSBlocked,
				IP:        request.ClientIP(r),
				Path:      r.URL.Path,
				UserAgent: r.UserAgent(),
			})
			return false
		},
		AllowCredentials:     true,
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:       []string{"Content-Type", "Authorization", "Cookie", "Set-Cookie"},
		OptionsSuccessStatus: http.StatusOK,
		MaxAge:               86400,
	})

	return c.Handler
}
