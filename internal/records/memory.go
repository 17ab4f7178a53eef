package records

import (
	"context"
	"sync"
	"time"

	"github.com/seuros/kohort/internal/models"
)

// Memory is a Store backed by process memory. Reads return copies so an
// aggregation pass never observes a concurrent append.
type Memory struct {
	mu   sync.RWMutex
	data models.Dataset
	keys map[string]struct{}
}

// NewMemory returns a store seeded with ds.
func NewMemory(ds *models.Dataset) *Memory {
	m := &Memory{
		data: *ds.Clone(),
		keys: make(map[string]struct{}),
	}
	for _, c := range m.data.Customers {
		m.keys[c.Key()] = struct{}{}
	}
	return m
}

// Fetch implements Source.
func (m *Memory) Fetch(ctx context.Context, _ models.DateRange, now time.Time) (*models.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: "memory", Err: err}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ds := &models.Dataset{
		Customers:    append([]models.Customer(nil), m.data.Customers...),
		Transactions: append([]models.Transaction(nil), m.data.Transactions...),
		Events:       make([]models.Event, 0, len(m.data.Events)),
	}
	for _, e := range m.data.Events {
		if !e.At.After(now) {
			ds.Events = append(ds.Events, e)
		}
	}
	return ds, nil
}

// Customers implements Store.
func (m *Memory) Customers(ctx context.Context) ([]models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: "memory", Err: err}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.Customer(nil), m.data.Customers...), nil
}

// AppendCustomers implements Store.
func (m *Memory) AppendCustomers(ctx context.Context, customers []models.Customer) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	for _, c := range customers {
		key := c.Key()
		if _, exists := m.keys[key]; exists {
			continue
		}
		m.keys[key] = struct{}{}
		m.data.Customers = append(m.data.Customers, c)
		added++
	}
	return added, nil
}

// AppendEvents adds funnel events.
func (m *Memory) AppendEvents(events ...models.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Events = append(m.data.Events, events...)
}

// AppendTransactions adds payment records.
func (m *Memory) AppendTransactions(txs ...models.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.Transactions = append(m.data.Transactions, txs...)
}

// Ping implements Pinger. Memory is always ready.
func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}
