// Package analytics turns a record snapshot into dashboard aggregates.
// Every function is pure: inputs are never mutated and empty inputs or zero
// divisors produce zero values instead of errors.
package analytics

import (
	"math"
	"time"

	"github.com/seuros/kohort/internal/models"
)

// Window is the closed interval [Start, End]. A zero Start is unbounded.
type Window struct {
	Start time.Time
	End   time.Time
}

// WindowFor returns the window a date range covers at now.
func WindowFor(rng models.DateRange, now time.Time) Window {
	return Window{Start: rng.Start(now), End: now}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if t.After(w.End) {
		return false
	}
	return w.Start.IsZero() || !t.Before(w.Start)
}

// percent returns part*100/whole, or 0 when whole is zero.
func percent(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part * 100 / whole
}

func clampPercent(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
