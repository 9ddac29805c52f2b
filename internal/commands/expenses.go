package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/spend/internal/activity"
	"github.com/cleared-dev/spend/internal/categories"
	"github.com/cleared-dev/spend/internal/dashboard"
	"github.com/cleared-dev/spend/internal/model"
)

func newListCommand(opts *globalOptions) *cobra.Command {
	var ff filterFlags

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List expenses",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := ff.filter()
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if _, err := a.requireUser(ctx); err != nil {
					return err
				}
				ctrl := a.controller(dashboard.WithFilter(f))
				if err := ctrl.Mount(ctx); err != nil {
					return err
				}
				return dashboard.Render(a.out, ctrl.State(), ctrl.Categories())
			})
		},
	}
	ff.register(cmd)

	return cmd
}

func newAddCommand(opts *globalOptions) *cobra.Command {
	var df draftFlags

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add an expense",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runAdd(ctx, a, df)
			})
		},
	}
	df.register(cmd)
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func runAdd(ctx context.Context, a *app, df draftFlags) error {
	if _, err := a.requireUser(ctx); err != nil {
		return err
	}
	ctrl := a.controller()
	if err := ctrl.FetchCategories(ctx); err != nil {
		return err
	}

	d := ctrl.State().Form
	if d.Date.IsZero() {
		d.Date = model.Today()
	}
	if err := applyDraftFlags(&d, df, ctrl.Categories()); err != nil {
		return err
	}
	if d.Category == 0 {
		return errors.New("no categories available: pass --category")
	}
	if err := d.Validate(); err != nil {
		return err
	}

	ctrl.SetForm(d)
	created, err := ctrl.AddExpense(ctx, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added expense #%d\n", created.ID)
	a.record(activity.ActionAdd, created.ID, describe(*created, ctrl.Categories()))
	return nil
}

func newEditCommand(opts *globalOptions) *cobra.Command {
	var df draftFlags

	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of an existing expense",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				return runEdit(ctx, a, id, df)
			})
		},
	}
	df.register(cmd)

	return cmd
}

func runEdit(ctx context.Context, a *app, id int64, df draftFlags) error {
	if _, err := a.requireUser(ctx); err != nil {
		return err
	}
	ctrl := a.controller()
	if err := ctrl.Mount(ctx); err != nil {
		return err
	}

	existing, ok := findExpense(ctrl.State().Expenses, id)
	if !ok {
		return fmt.Errorf("expense %d not found", id)
	}
	d := existing.Draft()
	if err := applyDraftFlags(&d, df, ctrl.Categories()); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}

	updated, err := ctrl.UpdateExpense(ctx, id, d)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated expense #%d\n", updated.ID)
	a.record(activity.ActionUpdate, updated.ID, describe(*updated, ctrl.Categories()))
	return nil
}

func newDeleteCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>...",
		Aliases: []string{"rm"},
		Short:   "Delete expenses",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				if _, err := a.requireUser(ctx); err != nil {
					return err
				}
				ctrl := a.controller()
				for _, id := range ids {
					if err := ctrl.DeleteExpense(ctx, id); err != nil {
						return fmt.Errorf("deleting expense %d: %w", id, err)
					}
					fmt.Fprintf(a.out, "Deleted expense #%d\n", id)
					a.record(activity.ActionDelete, id, "")
				}
				return nil
			})
		},
	}
}

// applyDraftFlags overwrites the fields whose flags were given.
func applyDraftFlags(d *model.Draft, df draftFlags, cats *categories.Service) error {
	if df.amount != "" {
		amount, err := model.ParseAmount(df.amount)
		if err != nil {
			return err
		}
		d.Amount = amount
	}
	if df.date != "" {
		date, err := model.ParseDate(df.date)
		if err != nil {
			return err
		}
		d.Date = date
	}
	if df.category != "" {
		c, err := cats.Resolve(df.category)
		if err != nil {
			return err
		}
		d.Category = c.ID
	}
	if df.description != "" {
		d.Description = df.description
	}
	return nil
}

func findExpense(expenses []model.Expense, id int64) (model.Expense, bool) {
	for _, e := range expenses {
		if e.ID == id {
			return e, true
		}
	}
	return model.Expense{}, false
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid expense id %q", s)
	}
	return id, nil
}

// describe summarizes an expense for the activity log.
func describe(e model.Expense, cats *categories.Service) string {
	name := e.CategoryName
	if name == "" {
		name = cats.Name(e.Category)
	}
	return fmt.Sprintf("%s %s %s %s", e.Date, e.Amount.StringFixed(2), name, e.Description)
}
