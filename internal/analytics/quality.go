package analytics

import (
	"fmt"
	"sort"
	"strings"

	"github.com/seuros/kohort/internal/models"
)

// AnomalyKind names a data problem found while aggregating.
type AnomalyKind string

const (
	AnomalyNonPositiveEvent AnomalyKind = "non_positive_event_amount"
	AnomalyNegativeDropOff  AnomalyKind = "negative_drop_off"
	AnomalyUnlinkedInflow   AnomalyKind = "unlinked_inflow"
	AnomalyNegativeAmount   AnomalyKind = "negative_transaction_amount"
	AnomalyUnknownStage     AnomalyKind = "unknown_stage"
)

// Anomaly is one group of suspicious records.
type Anomaly struct {
	Kind   AnomalyKind `json:"kind"`
	Count  int         `json:"count"`
	Detail string      `json:"detail"`
}

// Quality is the data quality score with the anomalies that lowered it.
type Quality struct {
	Score     float64   `json:"score"`
	Anomalies []Anomaly `json:"anomalies"`
}

// DataQuality starts at 100 and subtracts a weighted share for each kind of
// anomaly. The score never goes below 0 and is rounded to one decimal.
func DataQuality(ds *models.Dataset, funnel []FunnelStage, stages []string) Quality {
	if ds == nil {
		ds = &models.Dataset{}
	}
	q := Quality{Anomalies: []Anomaly{}}
	penalty := 0.0

	add := func(kind AnomalyKind, count, total int, weight float64, detail string) {
		if count == 0 {
			return
		}
		penalty += float64(count) / float64(total) * weight
		q.Anomalies = append(q.Anomalies, Anomaly{Kind: kind, Count: count, Detail: detail})
	}

	if n := len(ds.Events); n > 0 {
		nonPositive := 0
		for _, e := range ds.Events {
			if !e.Amount.IsPositive() {
				nonPositive++
			}
		}
		add(AnomalyNonPositiveEvent, nonPositive, n, 10,
			fmt.Sprintf("%d of %d events have a zero or negative amount", nonPositive, n))
	}

	if n := len(funnel); n > 0 {
		negative := NegativeDropOffs(funnel)
		names := make([]string, 0, len(negative))
		for _, fs := range negative {
			names = append(names, fs.Stage)
		}
		add(AnomalyNegativeDropOff, len(negative), n, 15,
			"stages with more deals than their predecessor: "+strings.Join(names, ", "))
	}

	if n := len(ds.Transactions); n > 0 {
		unlinked, negative := 0, 0
		for _, tx := range ds.Transactions {
			if tx.Direction == models.Inflow && strings.TrimSpace(tx.CustomerKey) == "" {
				unlinked++
			}
			if tx.Amount.IsNegative() {
				negative++
			}
		}
		add(AnomalyUnlinkedInflow, unlinked, n, 15,
			fmt.Sprintf("%d inflows are not linked to a customer", unlinked))
		add(AnomalyNegativeAmount, negative, n, 5,
			fmt.Sprintf("%d transactions have a negative amount", negative))
	}

	if n := len(ds.Events); n > 0 {
		unknown := UnknownStages(ds.Events, stages)
		count := 0
		names := make([]string, 0, len(unknown))
		for stage, c := range unknown {
			count += c
			names = append(names, fmt.Sprintf("%q", stage))
		}
		sort.Strings(names)
		add(AnomalyUnknownStage, count, n, 5,
			"events outside the funnel vocabulary: "+strings.Join(names, ", "))
	}

	q.Score = round1(max(0, 100-penalty))
	return q
}
