// Package ingest coordinates customer batch uploads. Uploads against one
// store never overlap: a process mutex orders local callers and a Locker
// orders processes sharing the store.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/seuros/kohort/internal/etl"
	"github.com/seuros/kohort/internal/lock"
	"github.com/seuros/kohort/internal/logging"
	"github.com/seuros/kohort/internal/models"
	"github.com/seuros/kohort/internal/records"
)

// ErrUploadBusy is returned when another upload held the lock for longer than
// the caller was willing to wait.
var ErrUploadBusy = errors.New("another upload is in progress")

// BatchSource yields one batch of incoming customer records.
type BatchSource interface {
	Name() string
	FetchBatch(ctx context.Context) ([]etl.Record, error)
}

// Publisher announces finished uploads.
type Publisher interface {
	Publish(ctx context.Context, upload models.Upload) error
}

// Report is the outcome of one upload.
type Report struct {
	Upload models.Upload `json:"upload"`
	Result etl.Result    `json:"result"`
}

// Service runs uploads against a record store.
type Service struct {
	store     records.Store
	history   History
	locker    lock.Locker
	publisher Publisher

	mu          sync.Mutex
	now         func() time.Time
	lockTimeout time.Duration
	lockPoll    time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithHistory records uploads in h instead of memory.
func WithHistory(h History) Option {
	return func(s *Service) { s.history = h }
}

// WithLocker adds cross-process serialization.
func WithLocker(l lock.Locker) Option {
	return func(s *Service) { s.locker = l }
}

// WithPublisher announces finished uploads.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithLockTimeout bounds how long an upload waits for the lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Service) { s.lockTimeout = d }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a service writing to store.
func NewService(store records.Store, opts ...Option) *Service {
	s := &Service{
		store:       store,
		history:     NewMemoryHistory(),
		locker:      lock.NewLocal(),
		now:         time.Now,
		lockTimeout: 30 * time.Second,
		lockPoll:    100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History exposes the upload log.
func (s *Service) History() History {
	return s.history
}

// Ingest uploads records that are already in memory, such as an HTTP body.
func (s *Service) Ingest(ctx context.Context, name string, batch []etl.Record) (*Report, error) {
	return s.Upload(ctx, staticBatch{name: name, records: batch})
}

// Upload fetches a batch from src, deduplicates it against the store and
// appends the accepted customers.
func (s *Service) Upload(ctx context.Context, src BatchSource) (*Report, error) {
	log := logging.Component("ingest")
	upload := models.Upload{
		ID:        uuid.NewString(),
		File:      src.Name(),
		Status:    models.UploadProcessing,
		StartedAt: s.now().UTC(),
	}
	if err := s.history.Record(ctx, upload); err != nil {
		log.Warn("failed to record upload start", "upload_id", upload.ID, "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.acquire(ctx); err != nil {
		return s.fail(ctx, upload, err)
	}
	defer func() {
		// release even when ctx is already done
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := s.locker.Release(releaseCtx); err != nil {
			log.Warn("failed to release upload lock", "upload_id", upload.ID, "error", err)
		}
	}()

	batch, err := src.FetchBatch(ctx)
	if err != nil {
		return s.fail(ctx, upload, asFetchError(src.Name(), err))
	}

	existing, err := s.store.Customers(ctx)
	if err != nil {
		return s.fail(ctx, upload, asFetchError("customers", err))
	}

	result := etl.Run(batch, existing, s.now().UTC())

	stored, err := s.store.AppendCustomers(ctx, result.Accepted)
	if err != nil {
		return s.fail(ctx, upload, fmt.Errorf("failed to store customers: %w", err))
	}
	if stored != len(result.Accepted) {
		log.Warn("store skipped accepted customers",
			"upload_id", upload.ID, "accepted", len(result.Accepted), "stored", stored)
	}

	finished := s.now().UTC()
	upload.Status = models.UploadCompleted
	upload.Records = len(result.Accepted)
	upload.Duplicates = result.Duplicates
	upload.Invalid = result.Invalid
	upload.Summary = result.Summary()
	upload.FinishedAt = &finished
	if err := s.history.Record(ctx, upload); err != nil {
		log.Warn("failed to record upload result", "upload_id", upload.ID, "error", err)
	}

	log.Info("upload completed",
		"upload_id", upload.ID,
		"file", upload.File,
		"accepted", upload.Records,
		"duplicates", upload.Duplicates,
		"invalid", upload.Invalid)
	s.publish(ctx, upload)

	return &Report{Upload: upload, Result: result}, nil
}

// Preview runs the pipeline without storing anything.
func (s *Service) Preview(ctx context.Context, src BatchSource) (etl.Result, error) {
	batch, err := src.FetchBatch(ctx)
	if err != nil {
		return etl.Result{}, asFetchError(src.Name(), err)
	}
	existing, err := s.store.Customers(ctx)
	if err != nil {
		return etl.Result{}, asFetchError("customers", err)
	}
	return etl.Run(batch, existing, s.now().UTC()), nil
}

func (s *Service) acquire(ctx context.Context) error {
	waitCtx := ctx
	if s.lockTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.lockTimeout)
		defer cancel()
	}
	if err := lock.Wait(waitCtx, s.locker, s.lockPoll); err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return fmt.Errorf("%w: %w", ErrUploadBusy, err)
		}
		return fmt.Errorf("failed to lock uploads: %w", err)
	}
	return nil
}

func (s *Service) fail(ctx context.Context, upload models.Upload, cause error) (*Report, error) {
	finished := s.now().UTC()
	upload.Status = models.UploadFailed
	upload.Error = cause.Error()
	upload.Summary = "upload failed"
	upload.FinishedAt = &finished

	recordCtx := context.WithoutCancel(ctx)
	if err := s.history.Record(recordCtx, upload); err != nil {
		logging.Component("ingest").Warn("failed to record upload failure", "upload_id", upload.ID, "error", err)
	}
	logging.Component("ingest").Error("upload failed", "upload_id", upload.ID, "file", upload.File, "error", cause)
	s.publish(recordCtx, upload)

	return &Report{Upload: upload}, fmt.Errorf("upload %s: %w", upload.File, cause)
}

func (s *Service) publish(ctx context.Context, upload models.Upload) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, upload); err != nil {
		logging.Component("ingest").Warn("failed to publish upload event", "upload_id", upload.ID, "error", err)
	}
}

func asFetchError(source string, err error) error {
	if errors.Is(err, records.ErrFetch) {
		return err
	}
	return &records.FetchError{Source: source, Err: err}
}

type staticBatch struct {
	name    string
	records []etl.Record
}

func (b staticBatch) Name() string { return b.name }

func (b staticBatch) FetchBatch(context.Context) ([]etl.Record, error) {
	return b.records, nil
}
