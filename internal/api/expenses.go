package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cleared-dev/spend/internal/model"
)

// ListExpenses returns every expense matching f, following pagination.
func (c *Client) ListExpenses(ctx context.Context, f model.Filter) ([]model.Expense, error) {
	return listAll[model.Expense](ctx, c, c.endpoint("/expenses", f.Query()))
}

// CreateExpense submits a new expense.
func (c *Client) CreateExpense(ctx context.Context, d model.Draft) (*model.Expense, error) {
	var created model.Expense
	if err := c.do(ctx, http.MethodPost, c.endpoint("/expenses", nil), d, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateExpense replaces the fields of expense id.
func (c *Client) UpdateExpense(ctx context.Context, id int64, d model.Draft) (*model.Expense, error) {
	var updated model.Expense
	if err := c.do(ctx, http.MethodPut, c.endpoint(expensePath(id), nil), d, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

// DeleteExpense removes expense id.
func (c *Client) DeleteExpense(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, c.endpoint(expensePath(id), nil), nil, nil)
}

// ListCategories returns the category reference data.
func (c *Client) ListCategories(ctx context.Context) ([]model.Category, error) {
	return listAll[model.Category](ctx, c, c.endpoint("/categories", nil))
}

func expensePath(id int64) string {
	return fmt.Sprintf("/expenses/%d", id)
}
