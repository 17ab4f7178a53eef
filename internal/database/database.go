// Package database holds the PostgreSQL connection, schema migrations and the
// repository backing the record store in database mode.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/seuros/kohort/internal/logging"
)

// DB is the shared connection pool. It is nil in memory mode.
var DB *sql.DB

// Connect opens DB from the DATABASE_URL environment variable.
func Connect() error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return errors.New("DATABASE_URL environment variable not set")
	}
	return ConnectURL(databaseURL)
}

// ConnectURL opens DB and verifies it answers.
func ConnectURL(databaseURL string) error {
	if databaseURL == "" {
		return errors.New("database url is empty")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	DB = db
	logging.L().Info("database connected")
	return nil
}

// Close closes DB when it is open.
func Close() error {
	if DB == nil {
		return nil
	}
	err := DB.Close()
	DB = nil
	return err
}

// ServerVersion reports the PostgreSQL server version string.
func ServerVersion(ctx context.Context, db *sql.DB) (string, error) {
	var version string
	if err := db.QueryRowContext(ctx, "SHOW server_version").Scan(&version); err != nil {
		return "", fmt.Errorf("failed to query server version: %w", err)
	}
	return version, nil
}

// TableCount is the row count of one table.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}

// CountedTables are the tables reported by TableStats, in order.
var CountedTables = []string{"customers", "events", "transactions", "uploads"}

// TableStats counts the rows of every kohort table.
func TableStats(ctx context.Context, db *sql.DB) ([]TableCount, error) {
	stats := make([]TableCount, 0, len(CountedTables))
	for _, table := range CountedTables {
		var n int64
		// names come from the fixed list above
		if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats = append(stats, TableCount{Table: table, Rows: n})
	}
	return stats, nil
}
