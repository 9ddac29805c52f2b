package dashboard

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/cleared-dev/spend/internal/categories"
)

// Render writes the list as an aligned table followed by the total.
func Render(w io.Writer, s State, cats *categories.Service) error {
	filterLine := "Filter: " + s.Filter.String()
	if s.RangeInputsDisabled() {
		filterLine += " (date range disabled while an exact date is set)"
	}
	if _, err := fmt.Fprintln(w, filterLine); err != nil {
		return err
	}

	if s.Phase == PhaseError && s.Err != nil {
		fmt.Fprintf(w, "Could not refresh, showing previous results: %v\n", s.Err)
	}

	if len(s.Expenses) == 0 {
		_, err := fmt.Fprintln(w, "No expenses found.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCATEGORY\tAMOUNT\tDESCRIPTION\t")
	for _, e := range s.Expenses {
		name := e.CategoryName
		if name == "" {
			name = cats.Name(e.Category)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			strconv.FormatInt(e.ID, 10), e.Date, name, e.Amount.StringFixed(2), e.Description)
	}
	fmt.Fprintf(tw, "\t\tTOTAL\t%s\t%d expense(s)\t\n", s.Total().StringFixed(2), len(s.Expenses))
	return tw.Flush()
}
