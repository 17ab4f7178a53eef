package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/seuros/kohort/internal/logging"
	"github.com/seuros/kohort/internal/models"
	"github.com/seuros/kohort/internal/records"
)

const fetchSource = "postgres"

// Repository stores customers, events, transactions and upload history in
// PostgreSQL.
type Repository struct {
	db *sql.DB
}

// NewRepository wraps db.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Fetch loads every customer and transaction, and every event up to now.
func (r *Repository) Fetch(ctx context.Context, _ models.DateRange, now time.Time) (*models.Dataset, error) {
	customers, err := r.Customers(ctx)
	if err != nil {
		return nil, err
	}
	events, err := r.events(ctx, now)
	if err != nil {
		return nil, &records.FetchError{Source: fetchSource, Err: err}
	}
	txs, err := r.transactions(ctx)
	if err != nil {
		return nil, &records.FetchError{Source: fetchSource, Err: err}
	}
	return &models.Dataset{Customers: customers, Events: events, Transactions: txs}, nil
}

// Customers returns every stored customer.
func (r *Repository) Customers(ctx context.Context) ([]models.Customer, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, email, avatar, status, total_spend, last_seen, join_date, churned_at
		FROM customers
		ORDER BY join_date NULLS FIRST, email
	`)
	if err != nil {
		return nil, &records.FetchError{Source: fetchSource, Err: err}
	}
	defer closeRows(rows)

	customers := []models.Customer{}
	for rows.Next() {
		var (
			c                  models.Customer
			status             string
			lastSeen, joinDate sql.NullTime
			churnedAt          sql.NullTime
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Avatar, &status, &c.TotalSpend,
			&lastSeen, &joinDate, &churnedAt); err != nil {
			return nil, &records.FetchError{Source: fetchSource, Err: err}
		}
		c.Status = models.CustomerStatus(status)
		c.LastSeen = lastSeen.Time
		c.JoinDate = joinDate.Time
		if churnedAt.Valid {
			t := churnedAt.Time
			c.ChurnedAt = &t
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &records.FetchError{Source: fetchSource, Err: err}
	}
	return customers, nil
}

// AppendCustomers inserts customers in one statement. Emails already stored
// are skipped; the number of new rows is returned.
func (r *Repository) AppendCustomers(ctx context.Context, customers []models.Customer) (int, error) {
	if len(customers) == 0 {
		return 0, nil
	}

	n := len(customers)
	ids := make([]string, n)
	names := make([]string, n)
	emails := make([]string, n)
	avatars := make([]string, n)
	statuses := make([]string, n)
	spends := make([]string, n)
	lastSeen := make([]string, n)
	joinDates := make([]string, n)
	churnedAt := make([]string, n)
	for i, c := range customers {
		ids[i] = c.ID
		names[i] = c.Name
		emails[i] = c.Key()
		avatars[i] = c.Avatar
		statuses[i] = string(c.Status)
		spends[i] = c.TotalSpend.String()
		lastSeen[i] = formatTime(c.LastSeen)
		joinDates[i] = formatTime(c.JoinDate)
		if c.ChurnedAt != nil {
			churnedAt[i] = formatTime(*c.ChurnedAt)
		}
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, avatar, status, total_spend, last_seen, join_date, churned_at)
		SELECT id, name, email, avatar, status, total_spend::numeric,
		       NULLIF(last_seen, '')::timestamptz,
		       NULLIF(join_date, '')::timestamptz,
		       NULLIF(churned_at, '')::timestamptz
		FROM unnest($1::text[], $2::text[], $3::text[], $4::text[], $5::text[],
		            $6::text[], $7::text[], $8::text[], $9::text[])
		     AS t(id, name, email, avatar, status, total_spend, last_seen, join_date, churned_at)
		ON CONFLICT (email) DO NOTHING
	`, pq.Array(ids), pq.Array(names), pq.Array(emails), pq.Array(avatars), pq.Array(statuses),
		pq.Array(spends), pq.Array(lastSeen), pq.Array(joinDates), pq.Array(churnedAt))
	if err != nil {
		return 0, fmt.Errorf("failed to insert customers: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count inserted customers: %w", err)
	}
	return int(affected), nil
}

// ImportDataset loads seed records. Rows whose key already exists are left
// untouched.
func (r *Repository) ImportDataset(ctx context.Context, ds *models.Dataset) (int, error) {
	total, err := r.AppendCustomers(ctx, ds.Customers)
	if err != nil {
		return 0, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, e := range ds.Events {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO events (id, deal_id, customer_key, stage, at, amount)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, e.ID, e.DealID, models.NormalizeEmail(e.CustomerKey), e.Stage, e.At, e.Amount.String())
		if err != nil {
			return 0, fmt.Errorf("failed to import event %s: %w", e.ID, err)
		}
		total += rowsAffected(res)
	}
	for _, t := range ds.Transactions {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO transactions (id, customer_key, direction, status, method, amount, at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO NOTHING
		`, t.ID, models.NormalizeEmail(t.CustomerKey), string(t.Direction), string(t.Status), t.Method, t.Amount.String(), t.At)
		if err != nil {
			return 0, fmt.Errorf("failed to import transaction %s: %w", t.ID, err)
		}
		total += rowsAffected(res)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}
	return total, nil
}

// Record inserts or updates an upload history entry.
func (r *Repository) Record(ctx context.Context, u models.Upload) error {
	var finished sql.NullTime
	if u.FinishedAt != nil {
		finished = sql.NullTime{Time: *u.FinishedAt, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO uploads (id, file, status, records, duplicates, invalid, summary, error, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			records = EXCLUDED.records,
			duplicates = EXCLUDED.duplicates,
			invalid = EXCLUDED.invalid,
			summary = EXCLUDED.summary,
			error = EXCLUDED.error,
			finished_at = EXCLUDED.finished_at
	`, u.ID, u.File, string(u.Status), u.Records, u.Duplicates, u.Invalid, u.Summary, u.Error, u.StartedAt, finished)
	if err != nil {
		return fmt.Errorf("failed to record upload %s: %w", u.ID, err)
	}
	return nil
}

// List returns up to limit uploads, newest first. A non-positive limit
// returns every upload.
func (r *Repository) List(ctx context.Context, limit int) ([]models.Upload, error) {
	query := `
		SELECT id, file, status, records, duplicates, invalid, summary, error, started_at, finished_at
		FROM uploads
		ORDER BY started_at DESC, id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	defer closeRows(rows)

	uploads := []models.Upload{}
	for rows.Next() {
		var (
			u        models.Upload
			status   string
			finished sql.NullTime
		)
		if err := rows.Scan(&u.ID, &u.File, &status, &u.Records, &u.Duplicates, &u.Invalid,
			&u.Summary, &u.Error, &u.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		u.Status = models.UploadStatus(status)
		if finished.Valid {
			t := finished.Time
			u.FinishedAt = &t
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// PruneUploads deletes finished uploads that started before cutoff.
func (r *Repository) PruneUploads(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM uploads WHERE started_at < $1 AND status <> 'Processing'`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune uploads: %w", err)
	}
	return res.RowsAffected()
}

func (r *Repository) events(ctx context.Context, until time.Time) ([]models.Event, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, deal_id, customer_key, stage, at, amount
		FROM events
		WHERE at <= $1
		ORDER BY at
	`, until)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	events := []models.Event{}
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.DealID, &e.CustomerKey, &e.Stage, &e.At, &e.Amount); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *Repository) transactions(ctx context.Context) ([]models.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, customer_key, direction, status, method, amount, at
		FROM transactions
		ORDER BY at
	`)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	txs := []models.Transaction{}
	for rows.Next() {
		var (
			t                 models.Transaction
			direction, status string
			amount            decimal.Decimal
		)
		if err := rows.Scan(&t.ID, &t.CustomerKey, &direction, &status, &t.Method, &amount, &t.At); err != nil {
			return nil, err
		}
		t.Direction = models.Direction(direction)
		t.Status = models.PaymentStatus(status)
		t.Amount = amount
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func rowsAffected(res sql.Result) int {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return int(n)
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logging.L().Warn("failed to close rows", "error", err)
	}
}
