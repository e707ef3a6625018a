package transport

import (
	"net/http"
	"strings"
)

// Authenticator applies authentication to HTTP requests.
type Authenticator interface {
	Apply(req *http.Request)
	// Configured reports whether credentials are present.
	Configured() bool
}

// NoAuth implements no authentication.
type NoAuth struct{}

// Apply implements the Authenticator interface for NoAuth.
func (a *NoAuth) Apply(_ *http.Request) {}

// Configured implements the Authenticator interface for NoAuth.
func (a *NoAuth) Configured() bool { return true }

// BasicAuth implements HTTP basic authentication with a username/password
// or an API key id/secret pair.
type BasicAuth struct {
	Username string
	Password string
}

// Apply implements the Authenticator interface for BasicAuth.
func (a *BasicAuth) Apply(req *http.Request) {
	if a.Username == "" && a.Password == "" {
		return
	}
	req.SetBasicAuth(a.Username, a.Password)
}

// Configured implements the Authenticator interface for BasicAuth.
func (a *BasicAuth) Configured() bool {
	return a.Username != "" && a.Password != ""
}

// LooksUnexpanded reports whether the password is still a ${VAR} placeholder.
func (a *BasicAuth) LooksUnexpanded() bool {
	return strings.HasPrefix(a.Password, "${")
}
