package model

import (
	"net/url"
	"strings"
)

// Filter narrows the expense list. ExactDate, when set, overrides the range.
type Filter struct {
	ExactDate Date
	StartDate Date
	EndDate   Date
	Category  string // category name, matched case-insensitively by the API
}

// Normalize drops the range when an exact date is set.
func (f Filter) Normalize() Filter {
	if !f.ExactDate.IsZero() {
		f.StartDate = Date{}
		f.EndDate = Date{}
	}
	f.Category = strings.TrimSpace(f.Category)
	return f
}

// RangeDisabled reports whether start/end inputs must be disabled.
func (f Filter) RangeDisabled() bool {
	return !f.ExactDate.IsZero()
}

// IsEmpty reports whether no filter is active.
func (f Filter) IsEmpty() bool {
	return f.ExactDate.IsZero() && f.StartDate.IsZero() && f.EndDate.IsZero() && f.Category == ""
}

// Query returns the list endpoint parameters. An exact date is sent as
// identical lower and upper bounds.
func (f Filter) Query() url.Values {
	f = f.Normalize()
	q := url.Values{}
	if f.Category != "" {
		q.Set("category", f.Category)
	}
	from, to := f.StartDate, f.EndDate
	if !f.ExactDate.IsZero() {
		from, to = f.ExactDate, f.ExactDate
	}
	if !from.IsZero() {
		q.Set("date_from", from.String())
	}
	if !to.IsZero() {
		q.Set("date_to", to.String())
	}
	return q
}

// String describes the active filter for display.
func (f Filter) String() string {
	f = f.Normalize()
	var parts []string
	switch {
	case !f.ExactDate.IsZero():
		parts = append(parts, "date="+f.ExactDate.String())
	default:
		if !f.StartDate.IsZero() {
			parts = append(parts, "from="+f.StartDate.String())
		}
		if !f.EndDate.IsZero() {
			parts = append(parts, "to="+f.EndDate.String())
		}
	}
	if f.Category != "" {
		parts = append(parts, "category="+f.Category)
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}
