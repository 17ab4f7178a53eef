// Package dashboard computes and caches analytics snapshots per date range.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/seuros/kohort/internal/analytics"
	"github.com/seuros/kohort/internal/logging"
	"github.com/seuros/kohort/internal/models"
	"github.com/seuros/kohort/internal/records"
)

// Service fetches records and aggregates them. Refresh publishes snapshots
// last-write-wins: a refresh started earlier never replaces one started later.
type Service struct {
	source records.Source
	opts   analytics.Options
	maxAge time.Duration
	now    func() time.Time

	mu        sync.Mutex
	tickets   map[models.DateRange]uint64
	published map[models.DateRange]published
}

type published struct {
	ticket    uint64
	dashboard *analytics.Dashboard
}

// Option configures a Service.
type Option func(*Service)

// WithMaxAge sets how long Snapshot serves a published snapshot before
// refreshing it. Zero, the default, refreshes on every call.
func WithMaxAge(d time.Duration) Option {
	return func(s *Service) { s.maxAge = d }
}

// NewService aggregates records from source with opts.
func NewService(source records.Source, opts analytics.Options, options ...Option) *Service {
	s := &Service{
		source:    source,
		opts:      opts,
		now:       time.Now,
		tickets:   make(map[models.DateRange]uint64),
		published: make(map[models.DateRange]published),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Options returns the aggregation options in use.
func (s *Service) Options() analytics.Options {
	return s.opts
}

// Compute fetches and aggregates without touching the published snapshots.
// A fetch failure is returned as is; no earlier snapshot is substituted.
func (s *Service) Compute(ctx context.Context, rng models.DateRange) (*analytics.Dashboard, error) {
	now := s.now().UTC()
	ds, err := s.source.Fetch(ctx, rng, now)
	if err != nil {
		return nil, fmt.Errorf("dashboard %s: %w", rng, asFetchError(err))
	}
	return analytics.Build(ds, rng, s.opts, now), nil
}

// Refresh computes a snapshot and publishes it unless a newer refresh for the
// same range already did. The computed snapshot is returned either way.
func (s *Service) Refresh(ctx context.Context, rng models.DateRange) (*analytics.Dashboard, error) {
	s.mu.Lock()
	s.tickets[rng]++
	ticket := s.tickets[rng]
	s.mu.Unlock()

	d, err := s.Compute(ctx, rng)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if current, ok := s.published[rng]; ok && current.ticket >= ticket {
		logging.Component("dashboard").Debug("discarding superseded snapshot", "range", rng, "ticket", ticket)
		return d, nil
	}
	s.published[rng] = published{ticket: ticket, dashboard: d}
	return d, nil
}

// Snapshot returns the published snapshot for rng while it is younger than
// the max age. Otherwise it refreshes and returns the newest published
// snapshot, which is a later refresh's result when this one was superseded.
func (s *Service) Snapshot(ctx context.Context, rng models.DateRange) (*analytics.Dashboard, error) {
	if d, ok := s.Latest(rng); ok && s.maxAge > 0 && s.now().Sub(d.GeneratedAt) < s.maxAge {
		return d, nil
	}

	d, err := s.Refresh(ctx, rng)
	if err != nil {
		return nil, err
	}
	if latest, ok := s.Latest(rng); ok {
		return latest, nil
	}
	// Invalidated while computing; the caller still gets current data.
	return d, nil
}

// Latest returns the last published snapshot for rng.
func (s *Service) Latest(rng models.DateRange) (*analytics.Dashboard, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.published[rng]
	if !ok || p.dashboard == nil {
		return nil, false
	}
	return p.dashboard, true
}

// Invalidate drops every published snapshot, for example after an upload.
// Refreshes already in flight read the old records and are not published.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for rng, ticket := range s.tickets {
		s.published[rng] = published{ticket: ticket}
	}
}

func asFetchError(err error) error {
	if errors.Is(err, records.ErrFetch) {
		return err
	}
	return &records.FetchError{Source: "records", Err: err}
}
