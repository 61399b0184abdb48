package handlers

import (
	"encoding/json"
	"net/http"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// VersionInfo handles the /version endpoint.
func VersionInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"service": "gatehouse",
		"version": Version,
	})
}
