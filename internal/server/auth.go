package server

import (
	"crypto/subtle"
	"net/http"
)

// adminPasswordHeader carries the shared admin secret on dashboard requests.
const adminPasswordHeader = "X-Admin-Password"

// Authenticator verifies that a request is allowed to use the admin
// endpoint. The single-shared-password scheme below is deliberately behind
// this interface so per-user tokens can replace it without touching call
// sites.
type Authenticator interface {
	Verify(r *http.Request) bool
}

// SharedPasswordAuth compares the admin password header against a shared
// secret in constant time.
type SharedPasswordAuth struct {
	secret string
}

// NewSharedPasswordAuth creates a SharedPasswordAuth. An empty secret
// rejects every request rather than allowing all of them.
func NewSharedPasswordAuth(secret string) *SharedPasswordAuth {
	return &SharedPasswordAuth{secret: secret}
}

func (a *SharedPasswordAuth) Verify(r *http.Request) bool {
	if a.secret == "" {
		return false
	}
	given := r.Header.Get(adminPasswordHeader)
	if given == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(given), []byte(a.secret)) == 1
}
