package analytics

import (
	"github.com/seuros/kohort/internal/models"
)

// FunnelStage is one step of the conversion funnel.
type FunnelStage struct {
	Stage      string  `json:"stage"`
	Value      int     `json:"value"`
	Percentage float64 `json:"percentage"`
	DropOff    int     `json:"dropOff"`
	DropOffPct float64 `json:"dropOffPct"`
}

// Transition describes the loss between two adjacent stages.
type Transition struct {
	From       string  `json:"from"`
	To         string  `json:"to"`
	Dropped    int     `json:"dropped"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// Funnel computes percentages and drop-offs for the ordered stages.
// Percentages are relative to the first stage; drop-offs to the previous one.
// Negative drop-offs are kept as they are.
func Funnel(stages []string, counts map[string]int) []FunnelStage {
	out := make([]FunnelStage, 0, len(stages))
	if len(stages) == 0 {
		return out
	}

	first := float64(counts[stages[0]])
	for i, stage := range stages {
		value := counts[stage]
		fs := FunnelStage{
			Stage:      stage,
			Value:      value,
			Percentage: percent(float64(value), first),
		}
		if i > 0 {
			prev := counts[stages[i-1]]
			fs.DropOff = prev - value
			fs.DropOffPct = percent(float64(fs.DropOff), float64(prev))
		}
		out = append(out, fs)
	}
	return out
}

// StageCounts counts deals per stage. A deal counts toward every stage up to
// the furthest one it reached. Events outside the vocabulary are ignored.
func StageCounts(events []models.Event, stages []string) map[string]int {
	order := stageOrder(stages)
	furthest := make(map[string]int)
	for _, e := range events {
		idx, ok := order[e.Stage]
		if !ok {
			continue
		}
		subject := e.Subject()
		if subject == "" {
			continue
		}
		if cur, seen := furthest[subject]; !seen || idx > cur {
			furthest[subject] = idx
		}
	}

	counts := make(map[string]int, len(stages))
	for _, stage := range stages {
		counts[stage] = 0
	}
	for _, idx := range furthest {
		for i := 0; i <= idx; i++ {
			counts[stages[i]]++
		}
	}
	return counts
}

// UnknownStages counts events per stage name outside the vocabulary.
func UnknownStages(events []models.Event, stages []string) map[string]int {
	order := stageOrder(stages)
	unknown := make(map[string]int)
	for _, e := range events {
		if _, ok := order[e.Stage]; !ok {
			unknown[e.Stage]++
		}
	}
	return unknown
}

// Transitions lists adjacent stage pairs with their losses.
func Transitions(funnel []FunnelStage) []Transition {
	if len(funnel) < 2 {
		return []Transition{}
	}
	out := make([]Transition, 0, len(funnel)-1)
	for i := 1; i < len(funnel); i++ {
		out = append(out, Transition{
			From:       funnel[i-1].Stage,
			To:         funnel[i].Stage,
			Dropped:    funnel[i].DropOff,
			Total:      funnel[i-1].Value,
			Percentage: funnel[i].DropOffPct,
		})
	}
	return out
}

// NegativeDropOffs returns the stages that gained deals over their
// predecessor.
func NegativeDropOffs(funnel []FunnelStage) []FunnelStage {
	var out []FunnelStage
	for _, fs := range funnel {
		if fs.DropOff < 0 {
			out = append(out, fs)
		}
	}
	return out
}

// ConversionRate is the share of deals in the window that reached the final
// stage.
func ConversionRate(events []models.Event, stages []string, w Window) float64 {
	if len(stages) == 0 {
		return 0
	}
	counts := StageCounts(filterEvents(events, w), stages)
	return percent(float64(counts[stages[len(stages)-1]]), float64(counts[stages[0]]))
}

func stageOrder(stages []string) map[string]int {
	order := make(map[string]int, len(stages))
	for i, s := range stages {
		if _, dup := order[s]; !dup {
			order[s] = i
		}
	}
	return order
}

func filterEvents(events []models.Event, w Window) []models.Event {
	out := make([]models.Event, 0, len(events))
	for _, e := range events {
		if w.Contains(e.At) {
			out = append(out, e)
		}
	}
	return out
}
