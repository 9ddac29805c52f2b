package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Expense is a single expense record owned by the remote service.
type Expense struct {
	ID           int64           `json:"id"`
	Amount       decimal.Decimal `json:"amount"`
	Date         Date            `json:"date"`
	Category     int64           `json:"category"`
	CategoryName string          `json:"category_name,omitempty"` // read-only, server populated
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Draft returns the mutable fields of e as a Draft.
func (e Expense) Draft() Draft {
	return Draft{
		Amount:      e.Amount,
		Date:        e.Date,
		Category:    e.Category,
		Description: e.Description,
	}
}

// Category is immutable reference data used to classify expenses.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Draft is the create/update payload for an expense.
type Draft struct {
	Amount      decimal.Decimal
	Date        Date
	Category    int64
	Description string
}

type draftJSON struct {
	Amount      json.Number `json:"amount"`
	Date        Date        `json:"date"`
	Category    int64       `json:"category"`
	Description string      `json:"description"`
}

// MarshalJSON writes the amount as a bare number with two decimals.
func (d Draft) MarshalJSON() ([]byte, error) {
	return json.Marshal(draftJSON{
		Amount:      json.Number(d.Amount.StringFixed(2)),
		Date:        d.Date,
		Category:    d.Category,
		Description: d.Description,
	})
}

// ValidationError describes a single invalid draft field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var hundred = decimal.NewFromInt(100)

// Validate checks the fields the input layer must enforce before submitting.
func (d Draft) Validate() error {
	if d.Amount.IsZero() {
		return ValidationError{Field: "amount", Message: "is required"}
	}
	if d.Amount.IsNegative() {
		return ValidationError{Field: "amount", Message: "must be positive"}
	}
	// Backend stores DecimalField(max_digits=10, decimal_places=2).
	scaled := d.Amount.Mul(hundred)
	if !scaled.Equal(scaled.Floor()) {
		return ValidationError{Field: "amount", Message: fmt.Sprintf("%s has more than 2 decimal places", d.Amount)}
	}
	if scaled.GreaterThanOrEqual(decimal.New(1, 10)) {
		return ValidationError{Field: "amount", Message: "is too large"}
	}
	if d.Date.IsZero() {
		return ValidationError{Field: "date", Message: "is required"}
	}
	return nil
}

// ParseAmount parses a user-entered amount like "12.50".
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, ValidationError{Field: "amount", Message: fmt.Sprintf("invalid number %q", s)}
	}
	return amount, nil
}

// Total sums the amounts of expenses.
func Total(expenses []Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
