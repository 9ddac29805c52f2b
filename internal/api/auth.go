package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cleared-dev/spend/internal/model"
)

// errNoUser is returned when an auth response carries no identity.
var errNoUser = errors.New("response carries no user")

type authResponse struct {
	User      *model.User `json:"user"`
	CSRFToken string      `json:"csrfToken"`
}

// decodeUser accepts {"user": {...}} or a bare user object.
func decodeUser(raw json.RawMessage) (*model.User, string, error) {
	var wrapped authResponse
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, "", err
	}
	if wrapped.User != nil {
		return wrapped.User, wrapped.CSRFToken, nil
	}

	var bare model.User
	if err := json.Unmarshal(raw, &bare); err != nil {
		return nil, "", err
	}
	if bare.ID == 0 && bare.Email == "" {
		return nil, wrapped.CSRFToken, errNoUser
	}
	return &bare, wrapped.CSRFToken, nil
}

// CurrentUser returns the identity behind the session cookie.
func (c *Client) CurrentUser(ctx context.Context) (*model.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.endpoint("/auth/user", nil), nil, &raw); err != nil {
		return nil, err
	}
	user, _, err := decodeUser(raw)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login authenticates with email and password.
func (c *Client) Login(ctx context.Context, creds model.Credentials) (*model.User, error) {
	return c.authenticate(ctx, "/auth/login", creds)
}

// Register creates an account using the configured registration variant.
func (c *Client) Register(ctx context.Context, reg model.Registration) (*model.User, error) {
	return c.authenticate(ctx, "/auth/register", reg.Payload(c.cfg.Registration))
}

func (c *Client) authenticate(ctx context.Context, path string, body any) (*model.User, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, c.endpoint(path, nil), body, &raw); err != nil {
		return nil, err
	}

	user, token, err := decodeUser(raw)
	c.SetCSRFToken(token)
	if errors.Is(err, errNoUser) || len(raw) == 0 {
		// Some deployments answer with only a key; ask who we are.
		return c.CurrentUser(ctx)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Logout asks the API to end the server-side session. It is a no-op when
// no logout path is configured.
func (c *Client) Logout(ctx context.Context) error {
	if c.cfg.LogoutPath == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, c.endpoint(c.cfg.LogoutPath, nil), nil, nil)
}
