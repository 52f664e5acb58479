package auth

import (
	"errors"
	"net/http"
	"strings"
)

// ErrNoIdentity is returned when a request carries no valid credentials.
var ErrNoIdentity = errors.New("auth: no identity")

// Principal is the authenticated caller. Only ID is required; the display
// fields are informational.
type Principal struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Identity resolves a bearer credential into a stable user identifier.
type Identity interface {
	Authenticate(token string) (Principal, error)
}

// TokenFromRequest extracts a bearer token from the Authorization header, or
// from the token / access_token query parameters used by websocket clients
// that cannot set headers.
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authz) > 7 && strings.EqualFold(authz[:7], "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	query := r.URL.Query()
	if token := strings.TrimSpace(query.Get("token")); token != "" {
		return token
	}
	return strings.TrimSpace(query.Get("access_token"))
}
