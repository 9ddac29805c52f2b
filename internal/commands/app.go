package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/spend/internal/activity"
	"github.com/cleared-dev/spend/internal/api"
	"github.com/cleared-dev/spend/internal/buildinfo"
	"github.com/cleared-dev/spend/internal/config"
	"github.com/cleared-dev/spend/internal/dashboard"
	"github.com/cleared-dev/spend/internal/logging"
	"github.com/cleared-dev/spend/internal/model"
	"github.com/cleared-dev/spend/internal/notify"
	"github.com/cleared-dev/spend/internal/session"
)

// app is the per-invocation wiring: configuration, the API client bound to
// the persisted session, and the stores built on top of it.
type app struct {
	dir      string
	cfg      *config.Config
	logger   *slog.Logger
	client   *api.Client
	store    *session.Store
	notifier notify.Notifier
	activity *activity.Log
	out      io.Writer
	errOut   io.Writer

	expired  bool // the API rejected the session during this run
	keepDisk bool // leave session.yaml untouched on close, e.g. after a failed login
}

// resolveDir returns the config directory from the flag or the default.
func resolveDir(opts *globalOptions) (string, error) {
	if opts.configDir != "" {
		return opts.configDir, nil
	}
	return config.DefaultDir()
}

// loadConfig reads config.yaml and applies environment and flag overrides.
func loadConfig(opts *globalOptions) (string, *config.Config, error) {
	dir, err := resolveDir(opts)
	if err != nil {
		return "", nil, fmt.Errorf("locating config dir: %w", err)
	}
	cfg, err := config.LoadDir(dir)
	if err != nil {
		return "", nil, err
	}
	if err := config.ApplyEnv(cfg); err != nil {
		return "", nil, err
	}
	if opts.apiURL != "" {
		cfg.API.BaseURL = strings.TrimRight(opts.apiURL, "/")
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	return dir, cfg, nil
}

func openApp(cmd *cobra.Command, opts *globalOptions) (*app, error) {
	dir, cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger := logging.New(logging.NewConfig(cfg.Logging.Level, cfg.Logging.JSON, cmd.ErrOrStderr()))

	st, err := session.LoadState(dir)
	if err != nil {
		return nil, err
	}
	jar := api.NewJar()
	tokens := api.NewTokenStore("")
	if st.BaseURL == cfg.API.BaseURL {
		if base, err := url.Parse(cfg.API.BaseURL); err == nil {
			jar.Load(base, st.HTTPCookies())
		}
		tokens.Set(st.CSRFToken)
	} else if st.BaseURL != "" {
		logger.Info("ignoring session saved for another API", "saved", st.BaseURL, "current", cfg.API.BaseURL)
	}

	client, err := api.New(api.Config{
		BaseURL:            cfg.API.BaseURL,
		CSRFHeader:         cfg.API.CSRFHeader,
		CSRFResponseHeader: cfg.API.CSRFResponseHeader,
		CSRFCookie:         cfg.API.CSRFCookie,
		LogoutPath:         cfg.Session.LogoutPath,
		Registration:       cfg.Register.Variant,
		Timeout:            cfg.API.Timeout,
		UserAgent:          buildinfo.UserAgent(),
	}, api.WithJar(jar), api.WithTokenStore(tokens), api.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("creating API client: %w", err)
	}

	a := &app{
		dir:      dir,
		cfg:      cfg,
		logger:   logger,
		client:   client,
		notifier: notify.NewWriter(cmd.ErrOrStderr()),
		activity: activity.New(dir),
		out:      cmd.OutOrStdout(),
		errOut:   cmd.ErrOrStderr(),
	}
	nav := session.NavigatorFunc(func(reason string) {
		a.expired = true
		fmt.Fprintln(a.errOut, reason)
	})
	a.store = session.NewStore(client, a.notifier, nav,
		session.WithLogger(logger),
		session.WithCookieName(cfg.Session.CookieName))
	return a, nil
}

// close persists the session. An anonymous session is removed from disk.
func (a *app) close() {
	if a.keepDisk {
		return
	}
	var err error
	if u := a.store.User(); u != nil {
		st := &session.State{BaseURL: a.cfg.API.BaseURL, User: u, CSRFToken: a.client.CSRFToken()}
		st.SetCookies(a.client.Jar().All())
		err = session.SaveState(a.dir, st)
	} else {
		err = session.RemoveState(a.dir)
	}
	if err != nil {
		a.logger.Warn("persisting session failed", "error", err)
	}
}

// requireUser runs the startup status check. A rejected session becomes
// ErrLoginRequired; any other failure keeps the saved session for next time.
func (a *app) requireUser(ctx context.Context) (*model.User, error) {
	if err := a.store.CheckStatus(ctx); err != nil {
		if api.IsUnauthorized(err) {
			return nil, session.ErrLoginRequired
		}
		a.keepDisk = true
		return nil, err
	}
	return a.store.Require()
}

// controller builds the expense view bound to this session.
func (a *app) controller(opts ...dashboard.Option) *dashboard.Controller {
	opts = append([]dashboard.Option{
		dashboard.WithLogger(a.logger),
		dashboard.WithObserver(a.store.Observe),
	}, opts...)
	return dashboard.NewController(a.client, a.notifier, opts...)
}

// record appends to the activity log. Failures are logged, never fatal.
func (a *app) record(action activity.Action, expenseID int64, details string) {
	user := ""
	if u := a.store.User(); u != nil {
		user = u.Email
	}
	if err := a.activity.Record(user, action, expenseID, details); err != nil {
		a.logger.Warn("recording activity failed", "action", action, "error", err)
	}
}

// loginRequired maps an expired session to ErrLoginRequired.
func (a *app) loginRequired(err error) error {
	if err == nil {
		return nil
	}
	if a.expired && !errors.Is(err, session.ErrLoginRequired) {
		return fmt.Errorf("%w: %w", session.ErrLoginRequired, err)
	}
	return err
}

// withApp opens the app, runs fn and persists the session afterwards.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) error {
	a, err := openApp(cmd, opts)
	if err != nil {
		return err
	}
	defer a.close()
	return a.loginRequired(fn(cmd.Context(), a))
}
