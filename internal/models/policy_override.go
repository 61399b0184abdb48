package models

import "time"

// PolicyOverride is a stored override of one policy's quota
// ("api", "login", or "form").
type PolicyOverride struct {
	Name          string    `json:"name"`
	MaxRequests   int       `json:"max_requests"`
	WindowSeconds int       `json:"window_seconds"`
	UpdatedAt     time.Time `json:"updated_at"`
}
