package database

import (
	"context"
	"time"

	"github.com/seuros/kohort/internal/logging"
)

var nowFunc = time.Now

// Pruner deletes upload history older than a cutoff.
type Pruner interface {
	PruneUploads(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryScheduler trims the upload history on a fixed interval.
type HistoryScheduler struct {
	pruner    Pruner
	retention time.Duration
	interval  time.Duration
	stopChan  chan struct{}
}

// NewHistoryScheduler prunes entries older than retention every interval.
func NewHistoryScheduler(pruner Pruner, retention, interval time.Duration) *HistoryScheduler {
	return &HistoryScheduler{
		pruner:    pruner,
		retention: retention,
		interval:  interval,
		stopChan:  make(chan struct{}),
	}
}

// Start runs the first pass immediately and then one per interval.
func (hs *HistoryScheduler) Start() {
	logging.L().Info("starting upload history scheduler", "retention", hs.retention, "interval", hs.interval)
	go hs.schedulePrune()
}

// Stop ends the schedule.
func (hs *HistoryScheduler) Stop() {
	close(hs.stopChan)
}

func (hs *HistoryScheduler) schedulePrune() {
	ticker := time.NewTicker(hs.interval)
	defer ticker.Stop()

	hs.prune()
	for {
		select {
		case <-ticker.C:
			hs.prune()
		case <-hs.stopChan:
			return
		}
	}
}

// prune returns the number of deleted entries.
func (hs *HistoryScheduler) prune() int64 {
	cutoff := nowFunc().Add(-hs.retention)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	deleted, err := hs.pruner.PruneUploads(ctx, cutoff)
	if err != nil {
		logging.L().Warn("failed to prune upload history", "error", err)
		return 0
	}
	if deleted > 0 {
		logging.L().Info("pruned upload history", "deleted", deleted, "cutoff", cutoff.Format(time.RFC3339))
	}
	return deleted
}
