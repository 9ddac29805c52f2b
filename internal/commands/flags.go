package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/spend/internal/model"
)

// filterFlags are the list filter flags shared by list and export.
type filterFlags struct {
	date     string
	from     string
	to       string
	category string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", "", "exact date (YYYY-MM-DD), overrides --from/--to")
	cmd.Flags().StringVar(&f.from, "from", "", "earliest date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "latest date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.category, "category", "", "category name")
}

func (f *filterFlags) filter() (model.Filter, error) {
	var out model.Filter
	for _, d := range []struct {
		flag  string
		value string
		dst   *model.Date
	}{
		{"--date", f.date, &out.ExactDate},
		{"--from", f.from, &out.StartDate},
		{"--to", f.to, &out.EndDate},
	} {
		if d.value == "" {
			continue
		}
		parsed, err := model.ParseDate(d.value)
		if err != nil {
			return model.Filter{}, fmt.Errorf("%s: %w", d.flag, err)
		}
		*d.dst = parsed
	}
	out.Category = f.category
	return out.Normalize(), nil
}

// draftFlags are the expense field flags shared by add and edit.
type draftFlags struct {
	amount      string
	date        string
	category    string
	description string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.amount, "amount", "", "amount, e.g. 12.50")
	cmd.Flags().StringVar(&f.date, "date", "", "date (YYYY-MM-DD), defaults to today when adding")
	cmd.Flags().StringVar(&f.category, "category", "", "category name or ID, defaults to the first category when adding")
	cmd.Flags().StringVarP(&f.description, "description", "m", "", "description")
}
