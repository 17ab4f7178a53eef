// Package etl validates, cleans and deduplicates incoming customer batches.
package etl

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seuros/kohort/internal/models"
)

// Reason classifies a rejected record.
type Reason string

const (
	ReasonDuplicate    Reason = "duplicate"
	ReasonMissingField Reason = "missing_field"
	ReasonInvalidValue Reason = "invalid_value"
)

// Rejection describes one record that was not accepted.
type Rejection struct {
	Index  int    `json:"index"`
	Email  string `json:"email,omitempty"`
	Reason Reason `json:"reason"`
	Detail string `json:"detail"`
}

// Result is the outcome of one pipeline run.
type Result struct {
	Accepted   []models.Customer `json:"accepted"`
	Duplicates int               `json:"duplicates"`
	Invalid    int               `json:"invalid"`
	Rejections []Rejection       `json:"rejections"`
}

// Failed is the number of records not accepted.
func (r Result) Failed() int {
	return r.Duplicates + r.Invalid
}

// Summary renders the run as a one-line report.
func (r Result) Summary() string {
	if r.Failed() == 0 {
		return fmt.Sprintf("%d added.", len(r.Accepted))
	}
	return fmt.Sprintf("%d added. %d failed (%d duplicate, %d invalid).",
		len(r.Accepted), r.Failed(), r.Duplicates, r.Invalid)
}

// timeLayouts are tried in order when parsing timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

var validate = validator.New()

// cleaned is a record after trimming, checked with struct tags.
type cleaned struct {
	Name  string `validate:"required"`
	Email string `validate:"required"`
}

// Run merges batch against the existing customers. Each record is trimmed,
// validated and checked against every key seen so far, including keys
// accepted earlier in the same batch. now stamps records that carry no join
// date. Run never fails; every input lands in exactly one bucket.
func Run(batch []Record, existing []models.Customer, now time.Time) Result {
	seen := make(map[string]struct{}, len(existing)+len(batch))
	for _, c := range existing {
		if key := c.Key(); key != "" {
			seen[key] = struct{}{}
		}
	}

	result := Result{
		Accepted:   make([]models.Customer, 0, len(batch)),
		Rejections: []Rejection{},
	}

	for i, rec := range batch {
		customer, reason, err := transform(rec, now)
		if err != nil {
			result.Invalid++
			result.Rejections = append(result.Rejections, Rejection{
				Index:  i,
				Email:  models.NormalizeEmail(rec.Email),
				Reason: reason,
				Detail: err.Error(),
			})
			continue
		}

		key := customer.Key()
		if _, dup := seen[key]; dup {
			result.Duplicates++
			result.Rejections = append(result.Rejections, Rejection{
				Index:  i,
				Email:  key,
				Reason: ReasonDuplicate,
				Detail: "email already exists",
			})
			continue
		}

		seen[key] = struct{}{}
		result.Accepted = append(result.Accepted, customer)
	}

	return result
}

// transform cleans and validates a single record.
func transform(rec Record, now time.Time) (models.Customer, Reason, error) {
	c := cleaned{
		Name:  strings.TrimSpace(rec.Name),
		Email: models.NormalizeEmail(rec.Email),
	}
	if err := validate.Struct(c); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) {
			return models.Customer{}, ReasonMissingField, formatFieldError(fieldErrors[0])
		}
		return models.Customer{}, ReasonInvalidValue, err
	}

	status, ok := models.ParseStatus(rec.Status)
	if !ok {
		return models.Customer{}, ReasonInvalidValue, fmt.Errorf("unknown status %q", rec.Status)
	}

	spend := decimal.Zero
	if raw := strings.TrimSpace(string(rec.TotalSpend)); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return models.Customer{}, ReasonInvalidValue, fmt.Errorf("totalspend %q is not a number", raw)
		}
		if d.IsNegative() {
			return models.Customer{}, ReasonInvalidValue, errors.New("totalspend must not be negative")
		}
		spend = d
	}

	joinDate, err := parseTime(string(rec.JoinDate))
	if err != nil {
		return models.Customer{}, ReasonInvalidValue, fmt.Errorf("joindate: %w", err)
	}
	lastSeen, err := parseTime(string(rec.LastSeen))
	if err != nil {
		return models.Customer{}, ReasonInvalidValue, fmt.Errorf("lastseen: %w", err)
	}
	if !joinDate.IsZero() && !lastSeen.IsZero() && lastSeen.Before(joinDate) {
		return models.Customer{}, ReasonInvalidValue, errors.New("lastseen precedes joindate")
	}

	switch {
	case joinDate.IsZero() && !lastSeen.IsZero():
		joinDate = lastSeen
	case joinDate.IsZero():
		joinDate = now
	}
	if lastSeen.IsZero() {
		lastSeen = joinDate
	}

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = uuid.NewString()
	}

	return models.Customer{
		ID:         id,
		Name:       c.Name,
		Email:      c.Email,
		Avatar:     strings.TrimSpace(rec.Avatar),
		Status:     status,
		TotalSpend: spend,
		LastSeen:   lastSeen,
		JoinDate:   joinDate,
	}, "", nil
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", raw)
}

// formatFieldError converts validator errors to readable messages.
func formatFieldError(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", strings.ToLower(fe.Field()))
	default:
		return fmt.Errorf("%s is invalid", strings.ToLower(fe.Field()))
	}
}
