package middleware

import (
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"go.uber.org/zap"

	"github.com/perimeterhq/gatehouse/internal/models"
	"github.com/perimeterhq/gatehouse/internal/request"
)

// Session creates middleware that verifies a session token from the
// session cookie or a bearer Authorization header and attaches the
// identity to the request context. The gateway never issues tokens;
// verification only drives rate-limit skip predicates and audit fields,
// so an invalid or missing token annotates nothing rather than
// rejecting the request.
func Session(secret []byte, cookieName string, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := sessionToken(r, cookieName)
			if tokenString == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, err := jwt.Parse([]byte(tokenString),
				jwt.WithKey(jwa.HS256, secret),
				jwt.WithValidate(true),
			)
			if err != nil {
				logger.Debug("session_token_rejected", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			session := &models.Session{Subject: token.Subject()}
			if username, ok := token.Get("username"); ok {
				if s, ok := username.(string); ok {
					session.Username = s
				}
			}
			if session.Username == "" {
				session.Username = session.Subject
			}
			if admin, ok := token.Get("admin"); ok {
				if b, ok := admin.(bool); ok {
					session.Admin = b
				}
			}

			ctx := request.WithSession(r.Context(), session)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionToken finds the token: cookie first, then bearer header.
func sessionToken(r *http.Request, cookieName string) string {
	if c, err := r.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value
	}
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return parts[1]
}
