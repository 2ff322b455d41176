package api

import (
	"context"
	"net/http"
)

// TokenSource yields the current bearer token. An empty string means
// anonymous; read errors are treated the same way so a broken local store
// degrades to unauthenticated requests instead of blocking them.
type TokenSource interface {
	AccessToken(ctx context.Context) string
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) string

func (f TokenSourceFunc) AccessToken(ctx context.Context) string { return f(ctx) }

// authRoundTripper is the authorizer pipeline stage. When a token is
// present it clones the request and attaches the Authorization header;
// the original request is never mutated, so retries and logging observe it
// pristine. Without a token the request passes through untouched.
type authRoundTripper struct {
	base   http.RoundTripper
	tokens TokenSource
}

func newAuthRoundTripper(base http.RoundTripper, tokens TokenSource) *authRoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &authRoundTripper{base: base, tokens: tokens}
}

func (rt *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	token := ""
	if rt.tokens != nil {
		token = rt.tokens.AccessToken(req.Context())
	}
	if token == "" {
		return rt.base.RoundTrip(req)
	}

	authorized := req.Clone(req.Context())
	authorized.Header.Set("Authorization", "Bearer "+token)
	return rt.base.RoundTrip(authorized)
}
