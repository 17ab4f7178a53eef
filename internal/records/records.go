// Package records defines where analytics input comes from and provides the
// in-memory store used when no database is configured.
package records

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seuros/kohort/internal/models"
)

// ErrFetch marks a failure to read records from their source. Callers surface
// it as retryable and never substitute stale data.
var ErrFetch = errors.New("records fetch failed")

// FetchError wraps the underlying cause with the name of the source.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrFetch) true for every FetchError.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// Source loads the dataset for one aggregation pass, as seen at now.
// Customers, transactions and events are returned in full history: cohorts
// need activity from before the range, so windowing happens in analytics.
// rng lets a source reject ranges it cannot serve.
type Source interface {
	Fetch(ctx context.Context, rng models.DateRange, now time.Time) (*models.Dataset, error)
}

// Store is a Source that also accepts new customers.
type Store interface {
	Source
	Customers(ctx context.Context) ([]models.Customer, error)
	// AppendCustomers inserts customers whose key is not present yet and
	// returns how many were stored.
	AppendCustomers(ctx context.Context, customers []models.Customer) (int, error)
}

// Pinger is implemented by stores that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}
