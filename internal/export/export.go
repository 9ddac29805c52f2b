// Package export writes expense lists as CSV or JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cleared-dev/spend/internal/categories"
	"github.com/cleared-dev/spend/internal/model"
)

// Format selects the output encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown export format %q: want csv or json", s)
	}
}

// Columns is the CSV layout. The importer reads the same layout back.
var Columns = []string{"id", "date", "category", "amount", "description"}

// Record is one exported expense with its category resolved to a name.
type Record struct {
	ID          int64  `json:"id"`
	Date        string `json:"date"`
	Category    string `json:"category"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

// Records resolves category names for expenses.
func Records(expenses []model.Expense, cats *categories.Service) []Record {
	out := make([]Record, 0, len(expenses))
	for _, e := range expenses {
		name := e.CategoryName
		if name == "" {
			name = cats.Name(e.Category)
		}
		out = append(out, Record{
			ID:          e.ID,
			Date:        e.Date.String(),
			Category:    name,
			Amount:      e.Amount.StringFixed(2),
			Description: e.Description,
		})
	}
	return out
}

// Write encodes expenses to w in format.
func Write(w io.Writer, format Format, expenses []model.Expense, cats *categories.Service) error {
	records := Records(expenses, cats)
	switch format {
	case FormatJSON:
		return writeJSON(w, records)
	case FormatCSV:
		return writeCSV(w, records)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

func writeCSV(w io.Writer, records []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, r := range records {
		row := []string{strconv.FormatInt(r.ID, 10), r.Date, r.Category, r.Amount, r.Description}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing expense %d: %w", r.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encoding expenses: %w", err)
	}
	return nil
}
