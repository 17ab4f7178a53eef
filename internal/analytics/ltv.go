package analytics

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/seuros/kohort/internal/models"
)

// Bucket is one histogram bin. Max is nil for the open-ended last bin.
type Bucket struct {
	Label string   `json:"label"`
	Min   float64  `json:"min"`
	Max   *float64 `json:"max,omitempty"`
	Count int      `json:"count"`
}

// LTVSummary pairs the average lifetime value with its distribution.
type LTVSummary struct {
	Average decimal.Decimal `json:"average"`
	Buckets []Bucket        `json:"buckets"`
}

// AverageLTV is the mean TotalSpend across customers.
func AverageLTV(customers []models.Customer) decimal.Decimal {
	if len(customers) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, c := range customers {
		sum = sum.Add(c.TotalSpend)
	}
	return sum.Div(decimal.NewFromInt(int64(len(customers))))
}

// LTVHistogram bins TotalSpend into [b0,b1) ... [bn,inf). Spends below the
// first boundary land in the first bin. Boundaries are sorted and
// deduplicated before use.
func LTVHistogram(customers []models.Customer, boundaries []float64) []Bucket {
	bounds := normalizeBoundaries(boundaries)
	if len(bounds) == 0 {
		return []Bucket{}
	}

	buckets := make([]Bucket, len(bounds))
	for i, lo := range bounds {
		buckets[i] = Bucket{Min: lo}
		if i+1 < len(bounds) {
			hi := bounds[i+1]
			buckets[i].Max = &hi
			buckets[i].Label = fmt.Sprintf("%s-%s", formatBound(lo), formatBound(hi))
		} else {
			buckets[i].Label = formatBound(lo) + "+"
		}
	}

	for _, c := range customers {
		v := c.TotalSpend.InexactFloat64()
		// index of the last boundary <= v, or 0 when v is below all of them
		idx := sort.Search(len(bounds), func(i int) bool { return bounds[i] > v }) - 1
		if idx < 0 {
			idx = 0
		}
		buckets[idx].Count++
	}
	return buckets
}

func normalizeBoundaries(boundaries []float64) []float64 {
	sorted := append([]float64(nil), boundaries...)
	sort.Float64s(sorted)
	out := sorted[:0]
	for i, b := range sorted {
		if i > 0 && b == sorted[i-1] {
			continue
		}
		out = append(out, b)
	}
	return out
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
