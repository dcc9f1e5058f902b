package api

import (
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// storeTokenSource exposes the stored session token to oauth2.
type storeTokenSource struct {
	tokens TokenStore
}

func (s storeTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("reading token: %w", err)
	}
	return &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}, nil
}

// authTransport attaches the bearer header when a token is stored and
// evicts the token on a 401 answer to an authenticated request.
type authTransport struct {
	tokens         TokenStore
	base           http.RoundTripper
	bearer         *oauth2.Transport
	onUnauthorized func()
}

func newAuthTransport(tokens TokenStore, base http.RoundTripper, onUnauthorized func()) *authTransport {
	return &authTransport{
		tokens:         tokens,
		base:           base,
		bearer:         &oauth2.Transport{Source: storeTokenSource{tokens: tokens}, Base: base},
		onUnauthorized: onUnauthorized,
	}
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	tok := ""
	if t.tokens != nil {
		var err error
		if tok, err = t.tokens.Token(); err != nil {
			if req.Body != nil {
				_ = req.Body.Close()
			}
			return nil, fmt.Errorf("reading token: %w", err)
		}
	}
	if tok == "" {
		return t.base.RoundTrip(req)
	}

	resp, err := t.bearer.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		// The hook runs even if eviction failed; the request is rejected either way.
		_ = t.tokens.ClearToken()
		if t.onUnauthorized != nil {
			t.onUnauthorized()
		}
	}
	return resp, nil
}
