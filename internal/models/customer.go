package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CustomerStatus is the lifecycle state of a customer.
type CustomerStatus string

const (
	StatusActive  CustomerStatus = "Active"
	StatusChurned CustomerStatus = "Churned"
	StatusAtRisk  CustomerStatus = "AtRisk"
	StatusNew     CustomerStatus = "New"
)

// Statuses lists every valid lifecycle status.
var Statuses = []CustomerStatus{StatusActive, StatusChurned, StatusAtRisk, StatusNew}

// ParseStatus maps loose spellings ("at risk", "at_risk", "ACTIVE") onto a
// status. An empty value is New.
func ParseStatus(raw string) (CustomerStatus, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(key)
	switch key {
	case "", "new":
		return StatusNew, true
	case "active":
		return StatusActive, true
	case "churned":
		return StatusChurned, true
	case "atrisk":
		return StatusAtRisk, true
	default:
		return "", false
	}
}

// Customer is the canonical customer record.
type Customer struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Email      string          `json:"email"`
	Avatar     string          `json:"avatar,omitempty"`
	Status     CustomerStatus  `json:"status"`
	TotalSpend decimal.Decimal `json:"totalSpend"`
	LastSeen   time.Time       `json:"lastSeen"`
	JoinDate   time.Time       `json:"joinDate"`
	ChurnedAt  *time.Time      `json:"churnedAt,omitempty"`
}

// Key returns the normalized dedup key.
func (c Customer) Key() string {
	return NormalizeEmail(c.Email)
}

// ChurnTime is when the customer turned Churned. LastSeen stands in when the
// transition was not recorded. The bool is false for non-churned customers.
func (c Customer) ChurnTime() (time.Time, bool) {
	if c.Status != StatusChurned {
		return time.Time{}, false
	}
	if c.ChurnedAt != nil {
		return *c.ChurnedAt, true
	}
	return c.LastSeen, true
}

// NormalizeEmail trims and lower-cases an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
