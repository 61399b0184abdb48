package models

// Session is the verified identity attached to a request. The gateway
// does not issue tokens; it only verifies them to drive rate-limit skip
// predicates and audit fields.
type Session struct {
	Subject  string `json:"subject"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}
