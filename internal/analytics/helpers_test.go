package analytics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/seuros/kohort/internal/models"
)

var (
	testNow    = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	testStages = []string{"Leads", "Qualification", "Proposal", "Negotiation", "Close"}
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func customer(email string, joined time.Time, spend int64) models.Customer {
	return models.Customer{
		ID:         email,
		Name:       email,
		Email:      email,
		Status:     models.StatusActive,
		TotalSpend: decimal.NewFromInt(spend),
		JoinDate:   joined,
		LastSeen:   joined,
	}
}

func payment(key string, at time.Time, amount int64) models.Transaction {
	return models.Transaction{
		CustomerKey: key,
		Direction:   models.Inflow,
		Status:      models.PaymentSuccess,
		Amount:      decimal.NewFromInt(amount),
		At:          at,
	}
}

func expense(at time.Time, amount int64) models.Transaction {
	return models.Transaction{
		Direction: models.Outflow,
		Status:    models.PaymentSuccess,
		Amount:    decimal.NewFromInt(amount),
		At:        at,
	}
}

func event(deal, stage string, at time.Time) models.Event {
	return models.Event{
		ID:     deal + "-" + stage,
		DealID: deal,
		Stage:  stage,
		At:     at,
		Amount: decimal.NewFromInt(100),
	}
}
