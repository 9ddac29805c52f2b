package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/spend/internal/activity"
	"github.com/cleared-dev/spend/internal/dashboard"
	"github.com/cleared-dev/spend/internal/model"
	"github.com/cleared-dev/spend/internal/session"
)

const dashboardHelp = `Commands:
  list                              reload the expense list
  filter key=value...               set date, from, to or category (date= clears)
  filter clear                      remove every filter
  add amount=N [date=D] [category=C] [description=TEXT]
  edit <id> key=value...            change amount, date, category or description
  delete <id>                       delete an expense
  categories                        show the categories
  help                              show this help
  quit                              leave the dashboard
Quote values containing spaces: category="Food & Dining"`

func newDashboardCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Browse and edit expenses interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := newPrompter(cmd)
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				u, err := a.requireUser(ctx)
				if err != nil {
					return err
				}
				ctrl := a.controller()
				if err := ctrl.Mount(ctx); a.expired {
					if err == nil {
						err = session.ErrLoginRequired
					}
					return err
				}
				name := u.DisplayName()
				if name == "" {
					name = u.Email
				}
				fmt.Fprintf(a.out, "Logged in as %s. Type help for commands.\n", name)
				if err := dashboard.Render(a.out, ctrl.State(), ctrl.Categories()); err != nil {
					return err
				}
				return (&repl{app: a, ctrl: ctrl, prompt: p}).run(ctx)
			})
		},
	}
}

// repl drives a Controller from input lines.
type repl struct {
	app    *app
	ctrl   *dashboard.Controller
	prompt *prompter
}

var errQuit = errors.New("quit")

func (r *repl) run(ctx context.Context) error {
	for {
		line, err := r.prompt.line("spend> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading command: %w", err)
		}
		if line == "" {
			continue
		}

		err = r.exec(ctx, line)
		switch {
		case errors.Is(err, errQuit):
			return nil
		case r.app.expired:
			if err == nil {
				err = session.ErrLoginRequired
			}
			return err
		case err != nil:
			fmt.Fprintf(r.app.errOut, "error: %v\n", err)
		}
	}
}

func (r *repl) exec(ctx context.Context, line string) error {
	words, err := splitWords(line)
	if err != nil {
		return err
	}
	cmd, args := strings.ToLower(words[0]), words[1:]

	switch cmd {
	case "quit", "exit", "q":
		return errQuit
	case "help", "?":
		fmt.Fprintln(r.app.out, dashboardHelp)
		return nil
	case "categories":
		for _, c := range r.ctrl.Categories().All() {
			fmt.Fprintf(r.app.out, "%d  %s\n", c.ID, c.Name)
		}
		return nil
	case "list", "ls":
		_ = r.ctrl.FetchExpenses(ctx)
	case "filter":
		if err := r.filter(ctx, args); err != nil {
			return err
		}
	case "add":
		if err := r.add(ctx, args); err != nil {
			return err
		}
	case "edit":
		if err := r.edit(ctx, args); err != nil {
			return err
		}
	case "delete", "rm":
		if err := r.delete(ctx, args); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown command %q (try help)", cmd)
	}
	return dashboard.Render(r.app.out, r.ctrl.State(), r.ctrl.Categories())
}

func (r *repl) filter(ctx context.Context, args []string) error {
	if len(args) == 1 && strings.EqualFold(args[0], "clear") {
		_ = r.ctrl.SetFilter(ctx, model.Filter{})
		return nil
	}
	fields, err := keyValues(args, "date", "from", "to", "category")
	if err != nil {
		return err
	}
	if len(fields) == 0 {
		return errors.New("usage: filter key=value... | filter clear")
	}

	// Start from the current filter so fields can be changed one at a time.
	cur := r.ctrl.State().Filter
	ff := filterFlags{category: cur.Category}
	if !cur.ExactDate.IsZero() {
		ff.date = cur.ExactDate.String()
	}
	if !cur.StartDate.IsZero() {
		ff.from = cur.StartDate.String()
	}
	if !cur.EndDate.IsZero() {
		ff.to = cur.EndDate.String()
	}
	for k, v := range fields {
		switch k {
		case "date":
			ff.date = v
		case "from":
			ff.from = v
		case "to":
			ff.to = v
		case "category":
			ff.category = v
		}
	}
	_, from := fields["from"]
	_, to := fields["to"]
	if ff.date != "" && (from || to) {
		return errors.New("date range is disabled while an exact date is set (clear it with date=)")
	}
	f, err := ff.filter()
	if err != nil {
		return err
	}
	_ = r.ctrl.SetFilter(ctx, f)
	return nil
}

func (r *repl) add(ctx context.Context, args []string) error {
	df, err := draftFields(args)
	if err != nil {
		return err
	}
	if df.amount == "" {
		return errors.New("usage: add amount=N [date=D] [category=C] [description=TEXT]")
	}

	d := r.ctrl.State().Form
	if d.Date.IsZero() {
		d.Date = model.Today()
	}
	if err := applyDraftFlags(&d, df, r.ctrl.Categories()); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}
	r.ctrl.SetForm(d)

	created, err := r.ctrl.AddExpense(ctx, d)
	if err != nil {
		return err
	}
	r.app.record(activity.ActionAdd, created.ID, describe(*created, r.ctrl.Categories()))
	return nil
}

func (r *repl) edit(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return errors.New("usage: edit <id> key=value...")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	existing, ok := findExpense(r.ctrl.State().Expenses, id)
	if !ok {
		return fmt.Errorf("expense %d is not in the current list", id)
	}
	df, err := draftFields(args[1:])
	if err != nil {
		return err
	}

	d := existing.Draft()
	if err := applyDraftFlags(&d, df, r.ctrl.Categories()); err != nil {
		return err
	}
	if err := d.Validate(); err != nil {
		return err
	}
	updated, err := r.ctrl.UpdateExpense(ctx, id, d)
	if err != nil {
		return err
	}
	r.app.record(activity.ActionUpdate, updated.ID, describe(*updated, r.ctrl.Categories()))
	return nil
}

func (r *repl) delete(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: delete <id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := r.ctrl.DeleteExpense(ctx, id); err != nil {
		return err
	}
	r.app.record(activity.ActionDelete, id, "")
	return nil
}

func draftFields(args []string) (draftFlags, error) {
	fields, err := keyValues(args, "amount", "date", "category", "description")
	if err != nil {
		return draftFlags{}, err
	}
	return draftFlags{
		amount:      fields["amount"],
		date:        fields["date"],
		category:    fields["category"],
		description: fields["description"],
	}, nil
}

// keyValues parses key=value words, accepting only the given keys.
func keyValues(args []string, keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		k = strings.ToLower(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("expected key=value, got %q", arg)
		}
		if !slices.Contains(keys, k) {
			return nil, fmt.Errorf("unknown field %q: want one of %s", k, strings.Join(keys, ", "))
		}
		out[k] = v
	}
	return out, nil
}

// splitWords splits a line on spaces. Double quotes group words and are
// removed.
func splitWords(line string) ([]string, error) {
	var (
		words  []string
		cur    strings.Builder
		quoted bool
		inWord bool
	)
	for _, ch := range line {
		switch {
		case ch == '"':
			quoted = !quoted
			inWord = true
		case (ch == ' ' || ch == '\t') && !quoted:
			if inWord {
				words = append(words, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(ch)
			inWord = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if inWord {
		words = append(words, cur.String())
	}
	if len(words) == 0 {
		return nil, errors.New("empty command")
	}
	return words, nil
}
