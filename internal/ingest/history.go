package ingest

import (
	"context"
	"sort"
	"sync"

	"github.com/seuros/kohort/internal/models"
)

// History is the upload log.
type History interface {
	// Record inserts the upload or replaces the entry with the same ID.
	Record(ctx context.Context, upload models.Upload) error
	// List returns up to limit uploads, newest first.
	List(ctx context.Context, limit int) ([]models.Upload, error)
}

// MemoryHistory keeps the upload log in process memory.
type MemoryHistory struct {
	mu      sync.RWMutex
	uploads map[string]models.Upload
}

// NewMemoryHistory returns an empty log.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{uploads: make(map[string]models.Upload)}
}

// Record implements History.
func (h *MemoryHistory) Record(_ context.Context, upload models.Upload) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.uploads[upload.ID] = upload
	return nil
}

// List implements History.
func (h *MemoryHistory) List(_ context.Context, limit int) ([]models.Upload, error) {
	h.mu.RLock()
	out := make([]models.Upload, 0, len(h.uploads))
	for _, u := range h.uploads {
		out = append(out, u)
	}
	h.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
