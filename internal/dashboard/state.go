// Package dashboard holds the expense list view: its state machine, the
// controller that drives it through the API, and its text rendering.
package dashboard

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/cleared-dev/spend/internal/model"
)

// Phase is the list's load phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	case PhaseError:
		return "error"
	default:
		return "unknown"
	}
}

// State is the view state. Transitions return a new State and never mutate
// the receiver.
type State struct {
	Phase      Phase
	Expenses   []model.Expense
	Categories []model.Category
	Filter     model.Filter
	Form       model.Draft
	Err        error // last load failure, cleared by a successful load
}

// Loading reports whether a fetch is in flight.
func (s State) Loading() bool {
	return s.Phase == PhaseLoading
}

// RangeInputsDisabled reports whether the start/end inputs are disabled
// because an exact date is set.
func (s State) RangeInputsDisabled() bool {
	return s.Filter.RangeDisabled()
}

// Total sums the cached list.
func (s State) Total() decimal.Decimal {
	return model.Total(s.Expenses)
}

// StartLoading enters the Loading phase.
func (s State) StartLoading() State {
	s.Phase = PhaseLoading
	return s
}

// ExpensesLoaded replaces the cached list wholesale.
func (s State) ExpensesLoaded(expenses []model.Expense) State {
	s.Phase = PhaseLoaded
	s.Expenses = slices.Clone(expenses)
	if s.Expenses == nil {
		s.Expenses = []model.Expense{}
	}
	s.Err = nil
	return s
}

// LoadFailed enters the Error phase and keeps the previous list.
func (s State) LoadFailed(err error) State {
	s.Phase = PhaseError
	s.Err = err
	return s
}

// CategoriesLoaded stores the reference data and seeds the form's category
// with the first entry when none is chosen.
func (s State) CategoriesLoaded(categories []model.Category) State {
	s.Categories = slices.Clone(categories)
	if s.Form.Category == 0 && len(categories) > 0 {
		s.Form.Category = categories[0].ID
	}
	return s
}

// WithFilter sets the active filter. An exact date drops the range.
func (s State) WithFilter(f model.Filter) State {
	s.Filter = f.Normalize()
	return s
}

// WithForm replaces the add form.
func (s State) WithForm(d model.Draft) State {
	s.Form = d
	return s
}

// ResetForm clears the add form, keeping the default category.
func (s State) ResetForm() State {
	s.Form = model.Draft{}
	if len(s.Categories) > 0 {
		s.Form.Category = s.Categories[0].ID
	}
	return s
}
