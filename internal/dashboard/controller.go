package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cleared-dev/spend/internal/api"
	"github.com/cleared-dev/spend/internal/categories"
	"github.com/cleared-dev/spend/internal/model"
	"github.com/cleared-dev/spend/internal/notify"
)

// API is the part of the API client the controller needs.
type API interface {
	ListExpenses(ctx context.Context, f model.Filter) ([]model.Expense, error)
	CreateExpense(ctx context.Context, d model.Draft) (*model.Expense, error)
	UpdateExpense(ctx context.Context, id int64, d model.Draft) (*model.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	ListCategories(ctx context.Context) ([]model.Category, error)
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithObserver routes every API error through fn before it is handled,
// typically session.Store.Observe.
func WithObserver(fn func(error) error) Option {
	return func(c *Controller) { c.observe = fn }
}

// WithFilter sets the initial filter.
func WithFilter(f model.Filter) Option {
	return func(c *Controller) { c.state = c.state.WithFilter(f) }
}

// Controller drives the expense list. It is not safe for concurrent use.
type Controller struct {
	api      API
	notifier notify.Notifier
	logger   *slog.Logger
	observe  func(error) error

	state            State
	categoriesLoaded bool
}

// NewController creates a Controller in the Idle phase.
func NewController(client API, notifier notify.Notifier, opts ...Option) *Controller {
	c := &Controller{
		api:      client,
		notifier: notifier,
		observe:  func(err error) error { return err },
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	c.logger = c.logger.With("component", "dashboard")
	return c
}

// State returns the current view state.
func (c *Controller) State() State {
	return c.state
}

// Categories returns a lookup over the loaded categories.
func (c *Controller) Categories() *categories.Service {
	return categories.NewService(c.state.Categories)
}

// Mount loads the categories and then the list. A category failure does not
// stop the list from loading, unless the session was rejected.
func (c *Controller) Mount(ctx context.Context) error {
	if rejected, err := c.fetchCategories(ctx); rejected {
		c.state = c.state.LoadFailed(err)
		return err
	} else if err != nil {
		c.logger.Warn("continuing without categories", "error", err)
	}
	return c.FetchExpenses(ctx)
}

// FetchExpenses reloads the list for the active filter. On failure the
// previous list is kept and the state enters the Error phase. The error is
// returned but never retried.
func (c *Controller) FetchExpenses(ctx context.Context) error {
	c.state = c.state.StartLoading()

	expenses, err := c.api.ListExpenses(ctx, c.state.Filter)
	if err != nil {
		err = c.observe(err)
		c.logger.Error("fetching expenses failed", "filter", c.state.Filter.String(), "error", err)
		c.state = c.state.LoadFailed(err)
		return fmt.Errorf("fetching expenses: %w", err)
	}
	c.state = c.state.ExpensesLoaded(expenses)
	c.logger.Debug("expenses loaded", "count", len(expenses))
	return nil
}

// SetFilter replaces the active filter and reloads.
func (c *Controller) SetFilter(ctx context.Context, f model.Filter) error {
	c.state = c.state.WithFilter(f)
	return c.FetchExpenses(ctx)
}

// SetForm replaces the add form.
func (c *Controller) SetForm(d model.Draft) {
	c.state = c.state.WithForm(d)
}

// AddExpense submits d, resets the form and reloads the list. Failures are
// notified and returned.
func (c *Controller) AddExpense(ctx context.Context, d model.Draft) (*model.Expense, error) {
	created, err := c.api.CreateExpense(ctx, d)
	if err != nil {
		return nil, c.writeFailed("Failed to add expense", err)
	}
	c.state = c.state.ResetForm()
	c.notifier.Success("Expense added")
	c.resync(ctx)
	return created, nil
}

// AddExpenses submits each draft in order and reloads the list once. It
// stops at the first failure and returns what was created before it.
func (c *Controller) AddExpenses(ctx context.Context, drafts []model.Draft) ([]model.Expense, error) {
	created := make([]model.Expense, 0, len(drafts))
	var failed error
	for i, d := range drafts {
		e, err := c.api.CreateExpense(ctx, d)
		if err != nil {
			failed = fmt.Errorf("expense %d of %d: %w", i+1, len(drafts), c.writeFailed("Failed to add expense", err))
			break
		}
		created = append(created, *e)
	}
	if len(created) > 0 {
		c.notifier.Success(fmt.Sprintf("Added %d expense(s)", len(created)))
		c.resync(ctx)
	}
	return created, failed
}

// UpdateExpense replaces expense id with d and reloads the list.
func (c *Controller) UpdateExpense(ctx context.Context, id int64, d model.Draft) (*model.Expense, error) {
	updated, err := c.api.UpdateExpense(ctx, id, d)
	if err != nil {
		return nil, c.writeFailed("Failed to update expense", err)
	}
	c.notifier.Success("Expense updated")
	c.resync(ctx)
	return updated, nil
}

// DeleteExpense removes expense id and reloads the list.
func (c *Controller) DeleteExpense(ctx context.Context, id int64) error {
	if err := c.api.DeleteExpense(ctx, id); err != nil {
		return c.writeFailed("Failed to delete expense", err)
	}
	c.notifier.Success("Expense deleted")
	c.resync(ctx)
	return nil
}

// FetchCategories loads the reference data once.
func (c *Controller) FetchCategories(ctx context.Context) error {
	_, err := c.fetchCategories(ctx)
	return err
}

// fetchCategories also reports whether the API rejected the session.
func (c *Controller) fetchCategories(ctx context.Context) (bool, error) {
	if c.categoriesLoaded {
		return false, nil
	}
	cats, err := c.api.ListCategories(ctx)
	if err != nil {
		rejected := api.IsUnauthorized(err)
		err = c.observe(err)
		c.logger.Warn("fetching categories failed", "error", err)
		return rejected, fmt.Errorf("fetching categories: %w", err)
	}
	c.state = c.state.CategoriesLoaded(cats)
	c.categoriesLoaded = true
	return false, nil
}

func (c *Controller) writeFailed(fallback string, err error) error {
	err = c.observe(err)
	c.logger.Error(fallback, "error", err)
	c.notifier.Error(api.Message(err, fallback))
	return err
}

// resync reloads after a write. The write already succeeded, so a reload
// failure only shows up in the state.
func (c *Controller) resync(ctx context.Context) {
	_ = c.FetchExpenses(ctx)
}
