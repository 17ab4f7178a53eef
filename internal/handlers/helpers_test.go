package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/seuros/kohort/internal/analytics"
	"github.com/seuros/kohort/internal/dashboard"
	"github.com/seuros/kohort/internal/ingest"
	"github.com/seuros/kohort/internal/models"
	"github.com/seuros/kohort/internal/records"
)

var testStages = []string{"Leads", "Qualification", "Proposal", "Negotiation", "Close"}

type apiFixture struct {
	app    *fiber.App
	store  *records.Memory
	ingest *ingest.Service
}

// setupAPI serves a memory store seeded with ds. cfg fields left empty are
// filled in from the fixture.
func setupAPI(t *testing.T, ds *models.Dataset, cfg Config, opts ...ingest.Option) *apiFixture {
	t.Helper()
	store := records.NewMemory(ds)
	if cfg.Store == nil {
		cfg.Store = store
	}
	if cfg.Dashboards == nil {
		cfg.Dashboards = dashboard.NewService(store, analytics.Options{
			Stages:  testStages,
			Buckets: []float64{0, 500, 1000},
			Cohort:  analytics.DefaultCohortOptions(),
		})
	}
	if cfg.Ingest == nil {
		cfg.Ingest = ingest.NewService(cfg.Store, opts...)
	}

	app := fiber.New()
	NewAPI(cfg).Register(app)
	return &apiFixture{app: app, store: store, ingest: cfg.Ingest}
}

func (f *apiFixture) do(t *testing.T, method, target, body string, headers map[string]string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := f.app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decodeJSON[T any](t *testing.T, data []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(data, &out), string(data))
	return out
}

// sampleDataset places two deals and a payment inside the last week.
func sampleDataset() *models.Dataset {
	now := time.Now().UTC()
	recent := now.Add(-24 * time.Hour)
	return &models.Dataset{
		Customers: []models.Customer{
			{ID: "1", Name: "Ana", Email: "ana@x.com", Status: models.StatusActive, TotalSpend: decimal.NewFromInt(1200), JoinDate: now.AddDate(0, -2, 0), LastSeen: recent},
			{ID: "2", Name: "Bruno", Email: "bruno@x.com", Status: models.StatusChurned, TotalSpend: decimal.NewFromInt(300), JoinDate: now.AddDate(0, -5, 0), LastSeen: now.AddDate(0, -1, 0)},
			{ID: "3", Name: "Carla", Email: "carla@x.com", Status: models.StatusNew, TotalSpend: decimal.NewFromInt(50), JoinDate: recent, LastSeen: recent},
		},
		Events: []models.Event{
			{ID: "e1", DealID: "d1", CustomerKey: "ana@x.com", Stage: "Leads", At: recent},
			{ID: "e2", DealID: "d1", CustomerKey: "ana@x.com", Stage: "Close", At: recent},
			{ID: "e3", DealID: "d2", CustomerKey: "carla@x.com", Stage: "Leads", At: recent},
		},
		Transactions: []models.Transaction{
			{ID: "t1", CustomerKey: "ana@x.com", Direction: models.Inflow, Status: models.PaymentSuccess, Amount: decimal.NewFromInt(500), At: recent},
		},
	}
}

type failingSource struct{}

func (failingSource) Fetch(context.Context, models.DateRange, time.Time) (*models.Dataset, error) {
	return nil, &records.FetchError{Source: "test", Err: context.DeadlineExceeded}
}

type failingStore struct {
	failingSource
}

func (failingStore) Customers(context.Context) ([]models.Customer, error) {
	return nil, &records.FetchError{Source: "test", Err: context.DeadlineExceeded}
}

func (failingStore) AppendCustomers(context.Context, []models.Customer) (int, error) {
	return 0, nil
}

func (failingStore) Ping(context.Context) error {
	return context.DeadlineExceeded
}
