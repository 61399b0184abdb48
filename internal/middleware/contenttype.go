package middleware

import (
	"net/http"
	"strings"
)

// allowedContentTypes are the media types the gateway forwards for
// requests with bodies. JSON for the API surface, form encodings for
// the form-submission surface.
var allowedContentTypes = []string{
	"application/json",
	"application/x-www-form-urlencoded",
	"multipart/form-data",
}

// ContentType validates Content-Type headers for requests with bodies
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut {
			contentType := strings.ToLower(r.Header.Get("Content-Type"))

			if contentType == "" {
				http.Error(w, "Content-Type header is required", http.StatusBadRequest)
				return
			}

			allowed := false
			for _, prefix := range allowedContentTypes {
				if strings.HasPrefix(contentType, prefix) {
					allowed = true
					break
				}
			}
			if !allowed {
				http.Error(w, "Unsupported Content-Type", http.StatusUnsupportedMediaType)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}
