package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/cleared-dev/spend/internal/export"
	"github.com/cleared-dev/spend/internal/model"
)

// SpendParser parses the native CSV written by `spend export`. The id
// column is ignored so a file can be imported into another account.
type SpendParser struct{}

const (
	spendColDate     = 1
	spendColCategory = 2
	spendColAmount   = 3
	spendColDesc     = 4
)

// Format returns the parser name.
func (p *SpendParser) Format() string { return "spend" }

// Parse reads a native CSV.
func (p *SpendParser) Parse(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(export.Columns)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading spend CSV: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}
	if !strings.EqualFold(strings.Join(records[0], ","), strings.Join(export.Columns, ",")) {
		return nil, fmt.Errorf("unexpected header %q, want %q", strings.Join(records[0], ","), strings.Join(export.Columns, ","))
	}

	var rows []Row
	for i, rec := range records[1:] {
		date, err := model.ParseDate(rec[spendColDate])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		amount, err := model.ParseAmount(rec[spendColAmount])
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing amount: %w", i+2, err)
		}
		rows = append(rows, Row{
			Line:        i + 2,
			Date:        date,
			Amount:      amount,
			Category:    strings.TrimSpace(rec[spendColCategory]),
			Description: rec[spendColDesc],
		})
	}
	return rows, nil
}
