package categories

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/cleared-dev/spend/internal/model"
)

// Header is the CSV header written by WriteCategories.
var Header = []string{"id", "name"}

// WriteCategories writes categories as CSV with a header row.
func WriteCategories(w io.Writer, categories []model.Category) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, c := range categories {
		if err := cw.Write([]string{strconv.FormatInt(c.ID, 10), c.Name}); err != nil {
			return fmt.Errorf("writing category %d: %w", c.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCategories reads CSV written by WriteCategories.
func ReadCategories(r io.Reader) ([]model.Category, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading categories CSV: %w", err)
	}
	if len(records) <= 1 {
		return nil, nil
	}

	var out []model.Category
	for i, rec := range records[1:] {
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: parsing id %q: %w", i+2, rec[0], err)
		}
		out = append(out, model.Category{ID: id, Name: rec[1]})
	}
	return out, nil
}
