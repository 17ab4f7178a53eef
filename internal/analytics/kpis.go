package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/seuros/kohort/internal/models"
)

// KPIs are the headline figures of the dashboard.
type KPIs struct {
	TotalCustomers      int             `json:"totalCustomers"`
	ActiveCustomers     int             `json:"activeCustomers"`
	ChurnedCustomers    int             `json:"churnedCustomers"`
	NewCustomers        int             `json:"newCustomers"`
	Revenue             decimal.Decimal `json:"revenue"`
	Expenses            decimal.Decimal `json:"expenses"`
	NetRevenue          decimal.Decimal `json:"netRevenue"`
	AverageTicket       decimal.Decimal `json:"averageTicket"`
	CAC                 decimal.Decimal `json:"cac"`
	ROI                 float64         `json:"roi"`
	AverageLTV          decimal.Decimal `json:"averageLtv"`
	ChurnShare          float64         `json:"churnShare"`
	ChurnRate           float64         `json:"churnRate"`
	MonthlyChurnRate    float64         `json:"monthlyChurnRate"`
	ConversionRate      float64         `json:"conversionRate"`
	PaymentSuccessRate  float64         `json:"paymentSuccessRate"`
	AverageLifespanDays int             `json:"averageLifespanDays"`
}

// ComputeKPIs derives the headline figures. Revenue, conversion, payment
// success, churn rate and new customers use the window; LTV, lifespan and
// churn share use the full history.
func ComputeKPIs(ds *models.Dataset, stages []string, w Window, now time.Time) KPIs {
	if ds == nil {
		ds = &models.Dataset{}
	}
	k := KPIs{
		TotalCustomers:      len(ds.Customers),
		NewCustomers:        NewCustomers(ds.Customers, w),
		Revenue:             TotalRevenue(ds.Transactions, w),
		Expenses:            TotalExpenses(ds.Transactions, w),
		AverageLTV:          AverageLTV(ds.Customers),
		ChurnRate:           ChurnRate(ds.Customers, w.Start, w.End),
		MonthlyChurnRate:    MonthlyChurnRate(ds.Transactions, now),
		ConversionRate:      ConversionRate(ds.Events, stages, w),
		PaymentSuccessRate:  PaymentSuccessRate(ds.Transactions, w),
		AverageLifespanDays: AverageLifespanDays(ds.Transactions),
		AverageTicket:       decimal.Zero,
		CAC:                 decimal.Zero,
	}
	for _, c := range ds.Customers {
		switch c.Status {
		case models.StatusActive:
			k.ActiveCustomers++
		case models.StatusChurned:
			k.ChurnedCustomers++
		}
	}

	k.NetRevenue = k.Revenue.Sub(k.Expenses)
	if k.NewCustomers > 0 {
		n := decimal.NewFromInt(int64(k.NewCustomers))
		k.AverageTicket = k.Revenue.Div(n)
		k.CAC = k.Expenses.Div(n)
	}
	if k.Expenses.IsPositive() {
		k.ROI = k.NetRevenue.Div(k.Expenses).InexactFloat64() * 100
	}
	k.ChurnShare = percent(float64(k.ChurnedCustomers), float64(k.TotalCustomers))
	return k
}
