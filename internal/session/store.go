// Package session owns the authenticated identity for the current user and
// reacts to the API reporting that the session is gone.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cleared-dev/spend/internal/api"
	"github.com/cleared-dev/spend/internal/model"
	"github.com/cleared-dev/spend/internal/notify"
)

// ErrLoginRequired is returned once the API has rejected the session.
var ErrLoginRequired = errors.New("login required: run `spend login`")

// Gateway is the part of the API client the store needs.
type Gateway interface {
	CurrentUser(ctx context.Context) (*model.User, error)
	Login(ctx context.Context, creds model.Credentials) (*model.User, error)
	Register(ctx context.Context, reg model.Registration) (*model.User, error)
	Logout(ctx context.Context) error
	ExpireCookie(name string)
	ClearCSRFToken()
}

// Navigator sends the user to the login entry point.
type Navigator interface {
	RequireLogin(reason string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(reason string)

// RequireLogin calls f.
func (f NavigatorFunc) RequireLogin(reason string) { f(reason) }

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithCookieName sets the session cookie expired on logout.
func WithCookieName(name string) Option {
	return func(s *Store) { s.cookieName = name }
}

// Store holds the current identity. A nil user means anonymous.
type Store struct {
	mu         sync.Mutex
	gw         Gateway
	notifier   notify.Notifier
	nav        Navigator
	logger     *slog.Logger
	cookieName string

	user    *model.User
	loading bool
}

// NewStore creates a Store. It starts in the loading state until
// CheckStatus completes.
func NewStore(gw Gateway, notifier notify.Notifier, nav Navigator, opts ...Option) *Store {
	s := &Store{
		gw:         gw,
		notifier:   notifier,
		nav:        nav,
		cookieName: "ecomm-refresh",
		loading:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "session")
	return s
}

// User returns a copy of the current identity, or nil.
func (s *Store) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Authenticated reports whether an identity is held.
func (s *Store) Authenticated() bool {
	return s.User() != nil
}

// Loading reports whether the initial status check is still pending.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *Store) setUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

// CheckStatus asks the API who owns the session. Any failure, 401 or
// otherwise, leaves the store anonymous. The error is returned for logging.
func (s *Store) CheckStatus(ctx context.Context) error {
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	u, err := s.gw.CurrentUser(ctx)
	if err != nil {
		s.setUser(nil)
		if !api.IsUnauthorized(err) {
			s.logger.Warn("checking session failed", "error", err)
		}
		return fmt.Errorf("checking session: %w", err)
	}
	s.setUser(u)
	return nil
}

// Login authenticates and notifies the outcome. On failure the identity is
// left unchanged and the error is returned.
func (s *Store) Login(ctx context.Context, email, password string) error {
	u, err := s.gw.Login(ctx, model.Credentials{Email: email, Password: password})
	if err != nil {
		s.notifier.Error(api.Message(err, "Invalid credentials"))
		return fmt.Errorf("logging in: %w", err)
	}
	s.setUser(u)
	s.logger.Info("logged in", "email", u.Email)
	s.notifier.Success("Successfully logged in!")
	return nil
}

// Register creates an account, which also signs it in.
func (s *Store) Register(ctx context.Context, reg model.Registration) error {
	u, err := s.gw.Register(ctx, reg)
	if err != nil {
		s.notifier.Error(api.Message(err, "Registration failed"))
		return fmt.Errorf("registering: %w", err)
	}
	s.setUser(u)
	s.logger.Info("registered", "email", u.Email)
	s.notifier.Success("Registration successful!")
	return nil
}

// Logout drops the identity, the session cookie and the anti-forgery token.
// The server is told as well, but its failure never blocks the local logout.
func (s *Store) Logout(ctx context.Context) {
	if err := s.gw.Logout(ctx); err != nil {
		s.logger.Warn("server logout failed", "error", err)
	}
	s.setUser(nil)
	s.gw.ExpireCookie(s.cookieName)
	s.gw.ClearCSRFToken()
	s.notifier.Success("Successfully logged out")
}

// Observe inspects an API error. When it signals an expired session the
// identity is cleared, the user is sent to login and the returned error
// wraps ErrLoginRequired. Other errors are returned unchanged.
func (s *Store) Observe(err error) error {
	if err == nil || !api.IsUnauthorized(err) {
		return err
	}
	s.setUser(nil)
	s.logger.Info("session expired", "error", err)
	s.nav.RequireLogin("Your session has expired. Please log in again.")
	return fmt.Errorf("%w: %w", ErrLoginRequired, err)
}

// Require returns ErrLoginRequired when no identity is held.
func (s *Store) Require() (*model.User, error) {
	if u := s.User(); u != nil {
		return u, nil
	}
	return nil, ErrLoginRequired
}
