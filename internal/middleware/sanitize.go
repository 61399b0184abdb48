package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/perimeterhq/gatehouse/internal/sanitize"
)

// Sanitize creates middleware that cleans the three request-derived
// payload trees (JSON body, query parameters, route parameters) before
// they reach the upstream. Each tree is sanitized independently.
//
// A malformed JSON body is a 400; so is a cyclic structure, which only
// programmatic callers can produce.
func Sanitize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(r.URL.RawQuery) > 0 {
			r.URL.RawQuery = sanitize.Values(r.URL.Query()).Encode()
		}

		if vars := mux.Vars(r); len(vars) > 0 {
			r = mux.SetURLVars(r, sanitize.Vars(vars))
		}

		if hasJSONBody(r) {
			body, err := io.ReadAll(r.Body)
			if err != nil {
				respondSanitizeError(w, "Failed to read request body")
				return
			}
			if len(bytes.TrimSpace(body)) > 0 {
				cleaned, err := cleanJSONBody(body)
				if err != nil {
					respondSanitizeError(w, "Invalid request body")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(cleaned))
				r.ContentLength = int64(len(cleaned))
				r.Header.Set("Content-Length", strconv.Itoa(len(cleaned)))
			} else {
				r.Body = io.NopCloser(bytes.NewReader(body))
			}
		}

		next.ServeHTTP(w, r)
	})
}

func hasJSONBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	if r.Body == nil {
		return false
	}
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}

func cleanJSONBody(body []byte) ([]byte, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	// ErrCycle cannot come from json.Unmarshal output, but the
	// contract is defined either way.
	cleaned, err := sanitize.Clean(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cleaned)
}

func respondSanitizeError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   message,
	})
}
