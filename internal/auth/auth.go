// Package auth validates API keys for the HTTP surface. Keys are issued to
// app frontends and backend-for-frontend services, prefixed agk_.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
)

// Authenticator validates an API key and returns the calling client.
type Authenticator interface {
	Authenticate(ctx context.Context, apiKey string) (*ClientContext, error)
}

// ClientContext identifies the authenticated API client.
type ClientContext struct {
	ClientID string
	Name     string
}

// ErrUnauthenticated is returned when no valid credentials are found.
var ErrUnauthenticated = errors.New("unauthenticated")

// ExtractBearerToken extracts an agk_ API key from the Authorization header.
func ExtractBearerToken(r *http.Request) (string, error) {
	token := r.Header.Get("Authorization")
	if token == "" {
		return "", ErrUnauthenticated
	}
	token = strings.TrimPrefix(token, "Bearer ")
	token = strings.TrimPrefix(token, "bearer ")
	if !strings.HasPrefix(token, "agk_") {
		return "", ErrUnauthenticated
	}
	return token, nil
}
