package api

import (
	"net/http"
	"sync"
)

// TokenStore holds the session's current anti-forgery token.
// The last Set wins; Get never consumes the token.
type TokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewTokenStore creates a store seeded with initial, which may be empty.
func NewTokenStore(initial string) *TokenStore {
	return &TokenStore{token: initial}
}

// Get returns the current token, or "" if none has been observed.
func (s *TokenStore) Get() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Set overwrites the current token. Empty values are ignored.
func (s *TokenStore) Set(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

// Clear forgets the current token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
}

// isMutating reports whether method changes server state.
func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// csrfTransport attaches the token to mutating requests and captures fresh
// tokens from successful responses.
type csrfTransport struct {
	base           http.RoundTripper
	tokens         *TokenStore
	requestHeader  string
	responseHeader string
	cookieName     string
}

func (t *csrfTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isMutating(req.Method) {
		if token := t.tokens.Get(); token != "" {
			req = req.Clone(req.Context())
			req.Header.Set(t.requestHeader, token)
		}
	}

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if token := t.freshToken(resp); token != "" {
			t.tokens.Set(token)
		}
	}
	return resp, nil
}

// freshToken prefers the response header over the cookie.
func (t *csrfTransport) freshToken(resp *http.Response) string {
	if t.responseHeader != "" {
		if token := resp.Header.Get(t.responseHeader); token != "" {
			return token
		}
	}
	if t.cookieName != "" {
		for _, c := range resp.Cookies() {
			if c.Name == t.cookieName && c.Value != "" && c.MaxAge >= 0 {
				return c.Value
			}
		}
	}
	return ""
}
