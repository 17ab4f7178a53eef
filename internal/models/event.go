package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event records a deal entering a funnel stage.
type Event struct {
	ID          string          `json:"id"`
	DealID      string          `json:"dealId"`
	CustomerKey string          `json:"customerKey"`
	Stage       string          `json:"stage"`
	At          time.Time       `json:"at"`
	Amount      decimal.Decimal `json:"amount"`
}

// Subject identifies the deal an event belongs to, falling back to the
// customer when the deal is unknown.
func (e Event) Subject() string {
	if e.DealID != "" {
		return e.DealID
	}
	return NormalizeEmail(e.CustomerKey)
}
