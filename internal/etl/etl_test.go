package etl

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/kohort/internal/models"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func TestRunCleansAndAccepts(t *testing.T) {
	batch := []Record{{
		Name:       "  Ana Souza ",
		Email:      "  ANA@Example.com ",
		Status:     "active",
		TotalSpend: "1250.50",
		JoinDate:   "2025-01-10",
		LastSeen:   "2025-06-01T09:00:00Z",
	}}

	result := Run(batch, nil, testNow)

	require.Len(t, result.Accepted, 1)
	c := result.Accepted[0]
	assert.Equal(t, "Ana Souza", c.Name)
	assert.Equal(t, "ana@example.com", c.Email)
	assert.Equal(t, models.StatusActive, c.Status)
	assert.True(t, c.TotalSpend.Equal(decimal.RequireFromString("1250.50")))
	assert.Equal(t, time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC), c.JoinDate)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "1 added.", result.Summary())
}

func TestRunMixedBatch(t *testing.T) {
	existing := []models.Customer{{Email: "a@x.com"}}
	batch := []Record{
		{Name: "A", Email: "A@x.com"},
		{Name: "B", Email: "b@x.com"},
		{Name: "", Email: "c@x.com"},
	}

	result := Run(batch, existing, testNow)

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "b@x.com", result.Accepted[0].Email)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Invalid)
	assert.Equal(t, "1 added. 2 failed (1 duplicate, 1 invalid).", result.Summary())

	require.Len(t, result.Rejections, 2)
	assert.Equal(t, ReasonDuplicate, result.Rejections[0].Reason)
	assert.Equal(t, 0, result.Rejections[0].Index)
	assert.Equal(t, ReasonMissingField, result.Rejections[1].Reason)
	assert.Equal(t, "name is required", result.Rejections[1].Detail)
}

func TestRunDuplicateWithinBatch(t *testing.T) {
	batch := []Record{
		{Name: "First", Email: "d@x.com"},
		{Name: "Second", Email: " D@X.COM"},
	}

	result := Run(batch, nil, testNow)

	require.Len(t, result.Accepted, 1)
	assert.Equal(t, "First", result.Accepted[0].Name)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 0, result.Invalid)
}

func TestRunEmptyBatch(t *testing.T) {
	result := Run(nil, []models.Customer{{Email: "a@x.com"}}, testNow)

	assert.Empty(t, result.Accepted)
	assert.Zero(t, result.Duplicates)
	assert.Zero(t, result.Invalid)
	assert.Equal(t, "0 added.", result.Summary())
}

func TestRunIsIdempotentAfterMerge(t *testing.T) {
	batch := []Record{
		{Name: "A", Email: "a@x.com"},
		{Name: "B", Email: "b@x.com"},
	}

	first := Run(batch, nil, testNow)
	require.Len(t, first.Accepted, 2)

	second := Run(batch, first.Accepted, testNow)
	assert.Empty(t, second.Accepted)
	assert.Equal(t, 2, second.Duplicates)
}

func TestRunRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		record Record
		detail string
	}{
		{"missing email", Record{Name: "A", Email: "   "}, "email is required"},
		{"negative spend", Record{Name: "A", Email: "a@x.com", TotalSpend: "-1"}, "totalspend must not be negative"},
		{"non numeric spend", Record{Name: "A", Email: "a@x.com", TotalSpend: "lots"}, `totalspend "lots" is not a number`},
		{"unknown status", Record{Name: "A", Email: "a@x.com", Status: "vip"}, `unknown status "vip"`},
		{"bad join date", Record{Name: "A", Email: "a@x.com", JoinDate: "yesterday"}, `joindate: unparseable timestamp "yesterday"`},
		{"last seen before join", Record{Name: "A", Email: "a@x.com", JoinDate: "2025-03-01", LastSeen: "2025-02-01"}, "lastseen precedes joindate"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Run([]Record{tt.record}, nil, testNow)

			assert.Empty(t, result.Accepted)
			assert.Equal(t, 1, result.Invalid)
			require.Len(t, result.Rejections, 1)
			assert.Equal(t, tt.detail, result.Rejections[0].Detail)
		})
	}
}

func TestRunDefaults(t *testing.T) {
	result := Run([]Record{
		{ID: "keep-me", Name: "A", Email: "a@x.com"},
		{Name: "B", Email: "b@x.com", LastSeen: "2025-04-02"},
	}, nil, testNow)

	require.Len(t, result.Accepted, 2)

	a := result.Accepted[0]
	assert.Equal(t, "keep-me", a.ID)
	assert.Equal(t, models.StatusNew, a.Status)
	assert.True(t, a.TotalSpend.IsZero())
	assert.Equal(t, testNow, a.JoinDate)
	assert.Equal(t, testNow, a.LastSeen)

	b := result.Accepted[1]
	assert.Equal(t, time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC), b.JoinDate)
	assert.Equal(t, b.JoinDate, b.LastSeen)
}

func TestRunCountsEveryRecord(t *testing.T) {
	existing := []models.Customer{{Email: "e@x.com"}}
	batch := []Record{
		{Name: "A", Email: "a@x.com"},
		{Name: "A again", Email: "a@x.com"},
		{Name: "E", Email: "e@x.com"},
		{Name: "", Email: ""},
		{Name: "Bad", Email: "bad@x.com", TotalSpend: "-3"},
		{Name: "C", Email: "c@x.com"},
	}

	result := Run(batch, existing, testNow)

	assert.Equal(t, len(batch), len(result.Accepted)+result.Duplicates+result.Invalid)
	assert.Equal(t, result.Failed(), len(result.Rejections))
}
