package auth

import (
	"context"
)

// StaticAuthenticator is a development-only authenticator that accepts any
// agk_ key.
type StaticAuthenticator struct{}

func NewStaticAuthenticator() *StaticAuthenticator {
	return &StaticAuthenticator{}
}

func (a *StaticAuthenticator) Authenticate(_ context.Context, apiKey string) (*ClientContext, error) {
	if len(apiKey) < 8 {
		return nil, ErrUnauthenticated
	}
	return &ClientContext{
		ClientID: "static-" + apiKey[4:8],
		Name:     "development",
	}, nil
}
