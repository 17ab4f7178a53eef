package analytics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/seuros/kohort/internal/models"
)

// MonthlyFlow is the cash movement of one calendar month.
type MonthlyFlow struct {
	Month    string          `json:"month"`
	Revenue  decimal.Decimal `json:"revenue"`
	Expenses decimal.Decimal `json:"expenses"`
	Net      decimal.Decimal `json:"net"`
}

// TotalRevenue sums successful inflows inside the window.
func TotalRevenue(txs []models.Transaction, w Window) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		if tx.IsRevenue() && w.Contains(tx.At) {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum
}

// TotalExpenses sums outflows inside the window.
func TotalExpenses(txs []models.Transaction, w Window) decimal.Decimal {
	sum := decimal.Zero
	for _, tx := range txs {
		if tx.Direction == models.Outflow && w.Contains(tx.At) {
			sum = sum.Add(tx.Amount)
		}
	}
	return sum
}

// RevenueExpense returns one entry per calendar month of the window, months
// without transactions included. An unbounded window starts at the earliest
// transaction.
func RevenueExpense(txs []models.Transaction, w Window) []MonthlyFlow {
	start := w.Start
	if start.IsZero() {
		start = w.End
		for _, tx := range txs {
			if tx.At.Before(start) {
				start = tx.At
			}
		}
	}

	first := models.MonthStart(start.UTC())
	last := models.MonthStart(w.End.UTC())
	index := make(map[string]int)
	var flows []MonthlyFlow
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		key := models.MonthKey(m)
		index[key] = len(flows)
		flows = append(flows, MonthlyFlow{
			Month:    key,
			Revenue:  decimal.Zero,
			Expenses: decimal.Zero,
			Net:      decimal.Zero,
		})
	}

	for _, tx := range txs {
		if !w.Contains(tx.At) {
			continue
		}
		i, ok := index[models.MonthKey(tx.At.UTC())]
		if !ok {
			continue
		}
		switch {
		case tx.IsRevenue():
			flows[i].Revenue = flows[i].Revenue.Add(tx.Amount)
		case tx.Direction == models.Outflow:
			flows[i].Expenses = flows[i].Expenses.Add(tx.Amount)
		}
	}
	for i := range flows {
		flows[i].Net = flows[i].Revenue.Sub(flows[i].Expenses)
	}
	if flows == nil {
		return []MonthlyFlow{}
	}
	return flows
}

// PaymentSuccessRate is the share of inflows inside the window that settled.
func PaymentSuccessRate(txs []models.Transaction, w Window) float64 {
	total, ok := 0, 0
	for _, tx := range txs {
		if tx.Direction != models.Inflow || !w.Contains(tx.At) {
			continue
		}
		total++
		if tx.Status == models.PaymentSuccess {
			ok++
		}
	}
	return percent(float64(ok), float64(total))
}

// AverageLifespanDays averages, per customer, the days between the first and
// last transaction. A customer with a single transaction counts as one day.
func AverageLifespanDays(txs []models.Transaction) int {
	type span struct {
		first, last time.Time
		n           int
	}
	spans := make(map[string]*span)
	for _, tx := range txs {
		key := models.NormalizeEmail(tx.CustomerKey)
		if key == "" {
			continue
		}
		s, ok := spans[key]
		if !ok {
			spans[key] = &span{first: tx.At, last: tx.At, n: 1}
			continue
		}
		s.n++
		if tx.At.Before(s.first) {
			s.first = tx.At
		}
		if tx.At.After(s.last) {
			s.last = tx.At
		}
	}
	if len(spans) == 0 {
		return 0
	}

	total := 0.0
	for _, s := range spans {
		if s.n == 1 {
			total++
			continue
		}
		total += s.last.Sub(s.first).Hours() / 24
	}
	return int(math.Round(total / float64(len(spans))))
}
