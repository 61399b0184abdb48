package policy

import (
	"net/http"
	"strings"

	"github.com/perimeterhq/gatehouse/internal/request"
)

// Route prefixes used for policy dispatch.
const (
	AuthPathPrefix  = "/api/v1/auth"
	FormPathPrefix  = "/api/v1/forms"
	AdminPathPrefix = "/api/v1/admin"
)

// Policy and event names.
const (
	NameAPI   = "api"
	NameLogin = "login"
	NameForm  = "form"

	EventAPI   = "rate_limit_exceeded"
	EventLogin = "login_rate_limit_exceeded"
	EventForm  = "form_rate_limit_exceeded"
)

// Registry holds the three policies and dispatches requests to them.
// Stateless after construction.
type Registry struct {
	api   *Policy
	login *Policy
	form  *Policy
}

// NewRegistry builds the registry from the given quotas.
func NewRegistry(limits Limits) *Registry {
	return &Registry{
		api: &Policy{
			Name:    NameAPI,
			Quota:   limits.API,
			Event:   EventAPI,
			message: "Too many requests, please try again later.",
			// Authenticated callers on admin paths bypass accounting.
			Skip: func(r *http.Request) bool {
				return strings.HasPrefix(r.URL.Path, AdminPathPrefix) &&
					request.SessionFromContext(r) != nil
			},
		},
		login: &Policy{
			Name:    NameLogin,
			Quota:   limits.Login,
			Event:   EventLogin,
			message: "Too many login attempts, please try again later.",
			// An already-authenticated session is not an attack on the
			// login endpoint.
			Skip: func(r *http.Request) bool {
				return request.SessionFromContext(r) != nil
			},
		},
		form: &Policy{
			Name:      NameForm,
			Quota:     limits.Form,
			Event:     EventForm,
			message:   "Too many submissions, please try again later.",
			formStyle: true,
		},
	}
}

// Resolve returns the policy for a request path. Deterministic prefix
// dispatch; unmatched paths fall under the general api policy.
func (reg *Registry) Resolve(path string) *Policy {
	switch {
	case strings.HasPrefix(path, AuthPathPrefix):
		return reg.login
	case strings.HasPrefix(path, FormPathPrefix):
		return reg.form
	default:
		return reg.api
	}
}

// Lookup returns the policy with the given name, or nil.
func (reg *Registry) Lookup(name string) *Policy {
	switch name {
	case NameAPI:
		return reg.api
	case NameLogin:
		return reg.login
	case NameForm:
		return reg.form
	default:
		return nil
	}
}

// All returns the registered policies.
func (reg *Registry) All() []*Policy {
	return []*Policy{reg.api, reg.login, reg.form}
}
