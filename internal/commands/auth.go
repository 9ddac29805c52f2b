package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/spend/internal/activity"
	"github.com/cleared-dev/spend/internal/model"
)

func newLoginCommand(opts *globalOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in to the expense API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			var err error
			if email, err = p.ask(email, "Email: "); err != nil {
				return fmt.Errorf("reading email: %w", err)
			}
			if password == "" {
				if password, err = p.secret("Password: "); err != nil {
					return err
				}
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runLogin(ctx, a, email, password)
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")

	return cmd
}

func runLogin(ctx context.Context, a *app, email, password string) error {
	if email == "" || password == "" {
		return errors.New("email and password are required")
	}
	if err := a.store.Login(ctx, email, password); err != nil {
		a.keepDisk = true
		return err
	}
	a.record(activity.ActionLogin, 0, "")
	return nil
}

func newRegisterCommand(opts *globalOptions) *cobra.Command {
	var reg model.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			var err error
			if reg.Email, err = p.ask(reg.Email, "Email: "); err != nil {
				return fmt.Errorf("reading email: %w", err)
			}
			if reg.Password == "" {
				if reg.Password, err = p.secret("Password: "); err != nil {
					return err
				}
				if reg.PasswordConfirm, err = p.secret("Confirm password: "); err != nil {
					return err
				}
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runRegister(ctx, a, reg)
			})
		},
	}

	cmd.Flags().StringVar(&reg.Email, "email", "", "account email")
	cmd.Flags().StringVar(&reg.Password, "password", "", "password (prompted when omitted)")
	cmd.Flags().StringVar(&reg.FirstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&reg.LastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&reg.Name, "name", "", "full name, for APIs that take a single name field")

	return cmd
}

func runRegister(ctx context.Context, a *app, reg model.Registration) error {
	if reg.Email == "" || reg.Password == "" {
		return errors.New("email and password are required")
	}
	if err := a.store.Register(ctx, reg); err != nil {
		a.keepDisk = true
		return err
	}
	a.record(activity.ActionRegister, 0, "")
	return nil
}

func newLogoutCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Log out and forget the saved session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				// Best effort: the identity is only needed for the activity log.
				_ = a.store.CheckStatus(ctx)
				a.record(activity.ActionLogout, 0, "")
				a.store.Logout(ctx)
				return nil
			})
		},
	}
}

func newWhoamiCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				u, err := a.requireUser(ctx)
				if err != nil {
					return err
				}
				if name := u.DisplayName(); name != "" {
					fmt.Fprintf(a.out, "%s <%s>\n", name, u.Email)
				} else {
					fmt.Fprintln(a.out, u.Email)
				}
				return nil
			})
		},
	}
}
