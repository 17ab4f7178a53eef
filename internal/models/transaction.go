package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells revenue from spending.
type Direction string

const (
	Inflow  Direction = "inflow"
	Outflow Direction = "outflow"
)

// PaymentStatus is the settlement result of a transaction.
type PaymentStatus string

const (
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// Transaction is a single payment record.
type Transaction struct {
	ID          string          `json:"id"`
	CustomerKey string          `json:"customerKey,omitempty"`
	Direction   Direction       `json:"direction"`
	Status      PaymentStatus   `json:"status"`
	Method      string          `json:"method,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	At          time.Time       `json:"at"`
}

// IsRevenue reports whether the transaction is a settled inflow.
func (t Transaction) IsRevenue() bool {
	return t.Direction == Inflow && t.Status == PaymentSuccess
}

// Dataset is the record set handed to one aggregation pass.
type Dataset struct {
	Customers    []Customer    `json:"customers"`
	Events       []Event       `json:"events"`
	Transactions []Transaction `json:"transactions"`
}

// Clone returns a copy whose slices can be read without holding any lock.
func (d *Dataset) Clone() *Dataset {
	if d == nil {
		return &Dataset{}
	}
	return &Dataset{
		Customers:    append([]Customer(nil), d.Customers...),
		Events:       append([]Event(nil), d.Events...),
		Transactions: append([]Transaction(nil), d.Transactions...),
	}
}
