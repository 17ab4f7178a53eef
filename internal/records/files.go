package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/seuros/kohort/internal/etl"
	"github.com/seuros/kohort/internal/models"
)

// Seed file names read by LoadDir.
const (
	CustomersFile    = "customers.json"
	EventsFile       = "events.json"
	TransactionsFile = "transactions.json"

	// DefaultBatchFile is the new-customer batch pulled by an upload.
	DefaultBatchFile = "new_customers.json"
)

// SeedFiles lists the files LoadDir looks for.
var SeedFiles = []string{CustomersFile, EventsFile, TransactionsFile}

// LoadDir builds a memory store from the seed files in dir. Missing files
// leave their slice empty; malformed files are an error.
func LoadDir(dir string) (*Memory, error) {
	ds := &models.Dataset{}
	if err := readSeed(filepath.Join(dir, CustomersFile), &ds.Customers); err != nil {
		return nil, err
	}
	if err := readSeed(filepath.Join(dir, EventsFile), &ds.Events); err != nil {
		return nil, err
	}
	if err := readSeed(filepath.Join(dir, TransactionsFile), &ds.Transactions); err != nil {
		return nil, err
	}
	return NewMemory(ds), nil
}

// SaveCustomers writes the stored customers back to dir so uploads made in
// memory mode survive a restart. The file is replaced atomically.
func (m *Memory) SaveCustomers(dir string) error {
	m.mu.RLock()
	data, err := json.MarshalIndent(m.data.Customers, "", "  ")
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to encode customers: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".customers-*.json")
	if err != nil {
		return fmt.Errorf("failed to save customers: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to save customers: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to save customers: %w", err)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, CustomersFile)); err != nil {
		return fmt.Errorf("failed to save customers: %w", err)
	}
	return nil
}

func readSeed(path string, dst any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return &FetchError{Source: path, Err: err}
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return &FetchError{Source: path, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// FileBatch is a batch source reading a JSON or CSV file.
type FileBatch struct {
	Path string
}

// NewFileBatch returns a batch source for path.
func NewFileBatch(path string) *FileBatch {
	return &FileBatch{Path: path}
}

// Name is the file's base name.
func (f *FileBatch) Name() string {
	return filepath.Base(f.Path)
}

// FetchBatch decodes the file. Any failure, including a missing file, is a
// FetchError.
func (f *FileBatch) FetchBatch(ctx context.Context) ([]etl.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: f.Path, Err: err}
	}
	batch, err := etl.DecodeFile(f.Path)
	if err != nil {
		return nil, &FetchError{Source: f.Path, Err: err}
	}
	return batch, nil
}
