package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seuros/kohort/internal/database"
	"github.com/seuros/kohort/internal/records"
)

func TestCheckDataDirectory(t *testing.T) {
	cfg := memoryConfig(t)
	result := checkDataDirectory(cfg)
	assert.True(t, result.Pass)
	_, err := os.Stat(filepath.Join(cfg.DataDir, ".kohort-write-test"))
	assert.True(t, os.IsNotExist(err), "probe file should be removed")

	cfg.DataDir = filepath.Join(cfg.DataDir, "missing", "nested")
	result = checkDataDirectory(cfg)
	assert.False(t, result.Pass)
	assert.NotEmpty(t, result.Error)
	assert.NotEmpty(t, result.Suggestion)
}

func TestCheckSeedFiles(t *testing.T) {
	t.Run("empty directory", func(t *testing.T) {
		result := checkSeedFiles(memoryConfig(t))
		assert.True(t, result.Pass)
		assert.Equal(t, "0/3 files, 0 customers", result.Details)
	})

	t.Run("customers present", func(t *testing.T) {
		cfg := memoryConfig(t)
		writeJSONFile(t, filepath.Join(cfg.DataDir, records.CustomersFile), sampleDataset().Customers)

		result := checkSeedFiles(cfg)
		assert.True(t, result.Pass)
		assert.Equal(t, "1/3 files, 3 customers", result.Details)
	})

	t.Run("malformed file", func(t *testing.T) {
		cfg := memoryConfig(t)
		require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, records.EventsFile), []byte("{not json"), 0o644))

		result := checkSeedFiles(cfg)
		assert.False(t, result.Pass)
		assert.NotEmpty(t, result.Error)
	})
}

func TestMigrationResult(t *testing.T) {
	tests := []struct {
		name    string
		version uint
		dirty   bool
		err     error
		pass    bool
		errText string
	}{
		{name: "current", version: 1, pass: true},
		{name: "behind", version: 0, pass: false, errText: "Migration version 0, expected 1"},
		{name: "dirty", version: 1, dirty: true, pass: false, errText: "Migration state is dirty"},
		{name: "error", err: errors.New("connection refused"), pass: false, errText: "connection refused"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := migrationResult(tt.version, tt.dirty, tt.err, 1)
			assert.Equal(t, tt.pass, result.Pass)
			assert.Equal(t, tt.errText, result.Error)
			if tt.pass {
				assert.Equal(t, "v1", result.Details)
			}
		})
	}
}

func TestCheckDatabaseConnection(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectPing()
	assert.True(t, checkDatabaseConnection(db).Pass)

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	result := checkDatabaseConnection(db)
	assert.False(t, result.Pass)
	assert.Equal(t, "connection refused", result.Error)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckPostgreSQLVersion(t *testing.T) {
	tests := []struct {
		version string
		pass    bool
		details string
	}{
		{version: "17.1 (Debian 17.1-1)", pass: true, details: "17.1"},
		{version: "13.4", pass: true, details: "13.4"},
		{version: "12.9 (Ubuntu 12.9-0ubuntu0.20.04.1)", pass: false},
	}

	for _, tt := range tests {
		t.Run(tt.version, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()

			mock.ExpectQuery("SHOW server_version").
				WillReturnRows(sqlmock.NewRows([]string{"server_version"}).AddRow(tt.version))

			result := checkPostgreSQLVersion(db)
			assert.Equal(t, tt.pass, result.Pass)
			if tt.pass {
				assert.Equal(t, tt.details, result.Details)
			} else {
				assert.Contains(t, result.Error, "need ≥13")
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestCheckTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectQuery("SELECT table_name FROM information_schema.tables").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).AddRow("customers").AddRow("events"))

	result := checkTables(db)
	assert.False(t, result.Pass)
	assert.Equal(t, "Missing tables: transactions, uploads", result.Error)

	mock.ExpectQuery("SELECT table_name FROM information_schema.tables").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"table_name"}).
			AddRow("customers").AddRow("events").AddRow("transactions").AddRow("uploads"))

	for i, table := range database.CountedTables {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM " + table).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(i * 10)))
	}

	result = checkTables(db)
	assert.True(t, result.Pass)
	assert.Equal(t, "4/4 tables found (customers 0, events 10, transactions 20, uploads 30)", result.Details)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckRedis(t *testing.T) {
	cfg := memoryConfig(t)

	result := checkRedis(cfg)
	assert.True(t, result.Pass)
	assert.Contains(t, result.Details, "not configured")

	mr := miniredis.RunT(t)
	cfg.RedisURL = "redis://" + mr.Addr()
	result = checkRedis(cfg)
	assert.True(t, result.Pass)
	assert.Equal(t, mr.Addr(), result.Details)

	cfg.RedisURL = "http://localhost:6379"
	result = checkRedis(cfg)
	assert.False(t, result.Pass)
	assert.NotEmpty(t, result.Suggestion)
}

func TestRunDoctorChecksMemoryMode(t *testing.T) {
	results := runDoctorChecks(memoryConfig(t))

	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.Name)
		assert.True(t, r.Pass, r.Name)
	}
	assert.Equal(t, []string{"Data Directory Writable", "Seed Files", "Database", "Redis"}, names)
	assert.Equal(t, "memory mode", results[2].Details)
}

func TestOutputDoctorHuman(t *testing.T) {
	var buf bytes.Buffer
	outputDoctorHuman(&buf, []CheckResult{
		{Name: "Data Directory Writable", Pass: true},
		{Name: "Redis", Pass: false, Error: "dial tcp: refused", Suggestion: "Start Redis or unset REDIS_URL"},
	})

	out := buf.String()
	assert.Contains(t, out, "Kohort Health Check")
	assert.Contains(t, out, "✓ Data Directory Writable")
	assert.Contains(t, out, "✗ Redis")
	assert.Contains(t, out, "  Error: dial tcp: refused")
	assert.Contains(t, out, "💡 Start Redis or unset REDIS_URL")
	assert.Contains(t, out, "1/2 checks passed")
}

func TestOutputDoctorJSON(t *testing.T) {
	var buf bytes.Buffer
	outputDoctorJSON(&buf, []CheckResult{{Name: "Seed Files", Pass: true, Details: "0/3 files, 0 customers"}})

	var decoded []CheckResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "Seed Files", decoded[0].Name)
	assert.True(t, decoded[0].Pass)
}

func TestCountFailed(t *testing.T) {
	assert.Equal(t, 0, countFailed(nil))
	assert.Equal(t, 2, countFailed([]CheckResult{{Pass: true}, {Pass: false}, {Pass: false}}))
}
