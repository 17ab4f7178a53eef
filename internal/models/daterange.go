package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidRange is returned for values outside the range enumeration.
var ErrInvalidRange = errors.New("invalid date range")

// DateRange is the dashboard filter value.
type DateRange string

const (
	RangeToday DateRange = "today"
	Range7d    DateRange = "7d"
	Range30d   DateRange = "30d"
	Range90d   DateRange = "90d"
	Range12m   DateRange = "12m"
	RangeAll   DateRange = "all"

	// Aliases kept for older dashboards.
	Range1m DateRange = "1m"
	Range3m DateRange = "3m"
	Range6m DateRange = "6m"
)

// Ranges lists the primary enumeration in display order.
var Ranges = []DateRange{RangeToday, Range7d, Range30d, Range90d, Range12m, RangeAll}

// ParseDateRange validates a filter value. Matching is case-insensitive.
func ParseDateRange(raw string) (DateRange, error) {
	r := DateRange(strings.ToLower(strings.TrimSpace(raw)))
	switch r {
	case RangeToday, Range7d, Range30d, Range90d, Range12m, RangeAll, Range1m, Range3m, Range6m:
		return r, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidRange, raw)
	}
}

// Start returns the inclusive lower bound of the window ending at now. The
// zero time means unbounded.
func (r DateRange) Start(now time.Time) time.Time {
	switch r {
	case RangeToday:
		y, m, d := now.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case Range7d:
		return now.AddDate(0, 0, -7)
	case Range30d, Range1m:
		return now.AddDate(0, -1, 0)
	case Range90d, Range3m:
		return now.AddDate(0, -3, 0)
	case Range6m:
		return now.AddDate(0, -6, 0)
	case Range12m:
		return now.AddDate(-1, 0, 0)
	default:
		return time.Time{}
	}
}

// Contains reports whether t falls inside [Start(now), now].
func (r DateRange) Contains(t, now time.Time) bool {
	if t.After(now) {
		return false
	}
	start := r.Start(now)
	return start.IsZero() || !t.Before(start)
}

// MonthStart truncates t to the first instant of its calendar month.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// MonthsBetween counts calendar month boundaries from a to b. It is negative
// when b precedes a.
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// MonthKey formats the month as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
