package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/seuros/kohort/internal/config"
	"github.com/seuros/kohort/internal/models"
)

var testNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	original := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	os.Stdout = w
	fn()
	_ = w.Close()
	os.Stdout = original

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

// isolateConfig points configuration lookups at an empty environment and
// resets the persistent flags afterwards.
func isolateConfig(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	for _, key := range []string{"DATABASE_URL", "REDIS_URL", "PORT", "DATA_DIR", "TRUSTED_ORIGINS", "API_KEYS"} {
		t.Setenv(key, "")
	}
	t.Cleanup(func() {
		flagDatabaseURL, flagPort, flagDataDir = "", "", ""
		RootCmd.SetArgs(nil)
	})
}

// memoryConfig is a validated memory-mode configuration over a temp dir.
func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Port:           "3000",
		DataDir:        dir,
		TrustedOrigins: []string{"localhost"},
		DefaultRange:   "30d",
		Cohort:         config.CohortConfig{Horizon: 12, Limit: 12, Activity: "payments"},
		Funnel:         config.FunnelConfig{Stages: append([]string(nil), config.DefaultStages...)},
		LTV:            config.LTVConfig{Buckets: append([]float64(nil), config.DefaultLTVBuckets...)},
		Ingest: config.IngestConfig{
			BatchFile: "new_customers.json",
			Inbox:     filepath.Join(dir, "inbox"),
			LockTTL:   time.Minute,
		},
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func writeJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func day(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 9, 0, 0, 0, time.UTC)
}

func sampleDataset() *models.Dataset {
	churned := day(time.February, 10)
	return &models.Dataset{
		Customers: []models.Customer{
			{ID: "c1", Name: "Ada", Email: "ada@example.com", Status: models.StatusActive,
				TotalSpend: decimal.NewFromInt(1200), JoinDate: day(time.January, 5), LastSeen: day(time.March, 10)},
			{ID: "c2", Name: "Bob", Email: "bob@example.com", Status: models.StatusChurned,
				TotalSpend: decimal.NewFromInt(300), JoinDate: day(time.January, 20), LastSeen: churned, ChurnedAt: &churned},
			{ID: "c3", Name: "Cy", Email: "cy@example.com", Status: models.StatusNew,
				TotalSpend: decimal.Zero, JoinDate: day(time.March, 1), LastSeen: day(time.March, 1)},
		},
		Events: []models.Event{
			{ID: "e1", DealID: "d1", CustomerKey: "ada@example.com", Stage: "Leads", At: day(time.March, 1), Amount: decimal.NewFromInt(500)},
			{ID: "e2", DealID: "d2", CustomerKey: "cy@example.com", Stage: "Leads", At: day(time.March, 2), Amount: decimal.NewFromInt(200)},
			{ID: "e3", DealID: "d1", CustomerKey: "ada@example.com", Stage: "Qualification", At: day(time.March, 5), Amount: decimal.NewFromInt(500)},
		},
		Transactions: []models.Transaction{
			{ID: "t1", CustomerKey: "ada@example.com", Direction: models.Inflow, Status: models.PaymentSuccess, Amount: decimal.NewFromInt(100), At: day(time.January, 10)},
			{ID: "t2", CustomerKey: "ada@example.com", Direction: models.Inflow, Status: models.PaymentSuccess, Amount: decimal.NewFromInt(100), At: day(time.February, 10)},
			{ID: "t3", Direction: models.Outflow, Status: models.PaymentSuccess, Amount: decimal.NewFromInt(50), At: day(time.March, 1)},
		},
	}
}
