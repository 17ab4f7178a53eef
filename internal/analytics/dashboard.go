package analytics

import (
	"time"

	"github.com/seuros/kohort/internal/models"
)

// Activity signal names accepted by Options.
const (
	ActivityPayments = "payments"
	ActivityEvents   = "events"
)

// Options configures one dashboard build.
type Options struct {
	Stages   []string
	Buckets  []float64
	Cohort   CohortOptions
	Activity string
}

// Dashboard is a complete snapshot for one date range.
type Dashboard struct {
	Range          models.DateRange `json:"range"`
	GeneratedAt    time.Time        `json:"generatedAt"`
	KPIs           KPIs             `json:"kpis"`
	Funnel         []FunnelStage    `json:"funnel"`
	Transitions    []Transition     `json:"transitions"`
	Cohorts        []Cohort         `json:"cohorts"`
	LTV            LTVSummary       `json:"ltv"`
	RevenueExpense []MonthlyFlow    `json:"revenueExpense"`
	Quality        Quality          `json:"quality"`
}

// Signal returns the activity signal selected by the options.
func (o Options) Signal(ds *models.Dataset) ActivitySignal {
	if o.Activity == ActivityEvents {
		return EventActivity(ds.Events)
	}
	return PaymentActivity(ds.Transactions)
}

// Build aggregates ds for rng as seen at now.
func Build(ds *models.Dataset, rng models.DateRange, opts Options, now time.Time) *Dashboard {
	if ds == nil {
		ds = &models.Dataset{}
	}
	w := WindowFor(rng, now)

	inWindow := &models.Dataset{
		Customers:    ds.Customers,
		Events:       filterEvents(ds.Events, w),
		Transactions: ds.Transactions,
	}
	funnel := Funnel(opts.Stages, StageCounts(inWindow.Events, opts.Stages))
	ltv := LTVSummary{
		Average: AverageLTV(ds.Customers),
		Buckets: LTVHistogram(ds.Customers, opts.Buckets),
	}

	return &Dashboard{
		Range:          rng,
		GeneratedAt:    now,
		KPIs:           ComputeKPIs(ds, opts.Stages, w, now),
		Funnel:         funnel,
		Transitions:    Transitions(funnel),
		Cohorts:        Cohorts(ds.Customers, opts.Signal(ds), now, opts.Cohort),
		LTV:            ltv,
		RevenueExpense: RevenueExpense(ds.Transactions, w),
		Quality:        DataQuality(inWindow, funnel, opts.Stages),
	}
}
