package analytics

import (
	"time"

	"github.com/seuros/kohort/internal/models"
)

// ChurnRate is the share of customers active at start who churned in
// [start, end). A customer is active at start when they joined before it and
// had not churned yet. A zero start measures every customer who joined
// before end.
func ChurnRate(customers []models.Customer, start, end time.Time) float64 {
	base, churned := 0, 0
	for _, c := range customers {
		if c.JoinDate.IsZero() {
			continue
		}
		at, isChurned := c.ChurnTime()

		if start.IsZero() {
			if !c.JoinDate.Before(end) {
				continue
			}
			base++
			if isChurned && at.Before(end) {
				churned++
			}
			continue
		}

		if !c.JoinDate.Before(start) {
			continue
		}
		if isChurned && at.Before(start) {
			continue
		}
		base++
		if isChurned && !at.Before(start) && at.Before(end) {
			churned++
		}
	}
	return percent(float64(churned), float64(base))
}

// MonthlyChurnRate compares payment activity in the month ending at now with
// the month before it. Customers who paid in the earlier month but not in the
// later one count as churned.
func MonthlyChurnRate(txs []models.Transaction, now time.Time) float64 {
	currentStart := now.AddDate(0, -1, 0)
	previousStart := now.AddDate(0, -2, 0)

	current := make(map[string]struct{})
	previous := make(map[string]struct{})
	for _, tx := range txs {
		key := models.NormalizeEmail(tx.CustomerKey)
		if key == "" || tx.At.After(now) {
			continue
		}
		switch {
		case !tx.At.Before(currentStart):
			current[key] = struct{}{}
		case !tx.At.Before(previousStart):
			previous[key] = struct{}{}
		}
	}

	churned := 0
	for key := range previous {
		if _, ok := current[key]; !ok {
			churned++
		}
	}
	return percent(float64(churned), float64(len(previous)))
}

// NewCustomers counts customers who joined inside the window.
func NewCustomers(customers []models.Customer, w Window) int {
	n := 0
	for _, c := range customers {
		if !c.JoinDate.IsZero() && w.Contains(c.JoinDate) {
			n++
		}
	}
	return n
}
