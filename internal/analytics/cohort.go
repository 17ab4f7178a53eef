package analytics

import (
	"sort"
	"time"

	"github.com/seuros/kohort/internal/models"
)

// Cohort is a group of customers who joined in the same month.
type Cohort struct {
	Cohort    string    `json:"cohort"`
	Month     time.Time `json:"month"`
	Size      int       `json:"size"`
	Retention []float64 `json:"retention"`
}

// CohortOptions bounds the retention table.
type CohortOptions struct {
	// Horizon is the number of month offsets per cohort, offset 0 included.
	Horizon int
	// Limit keeps the most recent cohorts. Zero keeps all of them.
	Limit int
}

// DefaultCohortOptions returns a twelve by twelve table.
func DefaultCohortOptions() CohortOptions {
	return CohortOptions{Horizon: 12, Limit: 12}
}

// ActivitySignal decides whether a customer counts as retained in a month.
type ActivitySignal interface {
	Active(key string, month time.Time) bool
}

// MonthlyActivity is a set of (customer key, month) pairs.
type MonthlyActivity map[string]map[string]struct{}

// Active implements ActivitySignal.
func (a MonthlyActivity) Active(key string, month time.Time) bool {
	months, ok := a[key]
	if !ok {
		return false
	}
	_, ok = months[models.MonthKey(month.UTC())]
	return ok
}

func (a MonthlyActivity) mark(key string, at time.Time) {
	if key == "" {
		return
	}
	months, ok := a[key]
	if !ok {
		months = make(map[string]struct{})
		a[key] = months
	}
	months[models.MonthKey(at.UTC())] = struct{}{}
}

// PaymentActivity marks a customer active in every month with a successful
// inflow.
func PaymentActivity(txs []models.Transaction) MonthlyActivity {
	activity := make(MonthlyActivity)
	for _, tx := range txs {
		if tx.IsRevenue() {
			activity.mark(models.NormalizeEmail(tx.CustomerKey), tx.At)
		}
	}
	return activity
}

// EventActivity marks a customer active in every month with a funnel event.
func EventActivity(events []models.Event) MonthlyActivity {
	activity := make(MonthlyActivity)
	for _, e := range events {
		activity.mark(models.NormalizeEmail(e.CustomerKey), e.At)
	}
	return activity
}

// Cohorts builds the retention table. Customers without a join date are
// skipped and cohorts that start after now are dropped. Offset 0 is always
// 100; later offsets are the share of members the signal reports active.
func Cohorts(customers []models.Customer, signal ActivitySignal, now time.Time, opts CohortOptions) []Cohort {
	if opts.Horizon <= 0 {
		opts.Horizon = DefaultCohortOptions().Horizon
	}
	now = now.UTC()

	members := make(map[string][]string)
	starts := make(map[string]time.Time)
	for _, c := range customers {
		if c.JoinDate.IsZero() {
			continue
		}
		month := models.MonthStart(c.JoinDate.UTC())
		label := models.MonthKey(month)
		members[label] = append(members[label], c.Key())
		starts[label] = month
	}

	labels := make([]string, 0, len(members))
	for label := range members {
		if models.MonthsBetween(starts[label], now) < 0 {
			continue
		}
		labels = append(labels, label)
	}
	sort.Strings(labels)
	if opts.Limit > 0 && len(labels) > opts.Limit {
		labels = labels[len(labels)-opts.Limit:]
	}

	out := make([]Cohort, 0, len(labels))
	for _, label := range labels {
		keys := members[label]
		if len(keys) == 0 {
			continue
		}
		month := starts[label]
		horizon := min(opts.Horizon, models.MonthsBetween(month, now)+1)

		retention := make([]float64, horizon)
		retention[0] = 100
		for m := 1; m < horizon; m++ {
			target := month.AddDate(0, m, 0)
			active := 0
			for _, key := range keys {
				if signal != nil && signal.Active(key, target) {
					active++
				}
			}
			retention[m] = clampPercent(percent(float64(active), float64(len(keys))))
		}

		out = append(out, Cohort{
			Cohort:    label,
			Month:     month,
			Size:      len(keys),
			Retention: retention,
		})
	}
	return out
}
