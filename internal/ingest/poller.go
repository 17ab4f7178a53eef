package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/seuros/kohort/internal/logging"
	"github.com/seuros/kohort/internal/records"
)

// Inbox subdirectories that receive handled files.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Poller uploads batch files dropped into an inbox directory.
type Poller struct {
	service  *Service
	inbox    string
	interval time.Duration
	stopChan chan struct{}
	done     chan struct{}
}

// NewPoller watches inbox every interval.
func NewPoller(service *Service, inbox string, interval time.Duration) *Poller {
	return &Poller{
		service:  service,
		inbox:    inbox,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins polling in the background.
func (p *Poller) Start() {
	logging.L().Info("starting inbox poller", "inbox", p.inbox, "interval", p.interval)
	go p.run()
}

// Stop ends polling and waits for an in-flight scan to finish.
func (p *Poller) Stop() {
	close(p.stopChan)
	<-p.done
}

func (p *Poller) run() {
	defer close(p.done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	p.Scan(ctx)
	for {
		select {
		case <-ticker.C:
			p.Scan(ctx)
		case <-p.stopChan:
			return
		}
	}
}

// Scan uploads every pending file once and returns how many succeeded.
// Files are handled in name order and moved out of the inbox afterwards.
func (p *Poller) Scan(ctx context.Context) int {
	files, err := pendingFiles(p.inbox)
	if err != nil {
		logging.L().Warn("failed to list inbox", "inbox", p.inbox, "error", err)
		return 0
	}

	succeeded := 0
	for _, path := range files {
		if ctx.Err() != nil {
			return succeeded
		}

		_, err := p.service.Upload(ctx, records.NewFileBatch(path))
		target := ProcessedDir
		switch {
		case errors.Is(err, ErrUploadBusy), errors.Is(err, context.Canceled):
			// leave the file for the next scan
			continue
		case err != nil:
			target = FailedDir
		default:
			succeeded++
		}

		if err := moveInto(path, filepath.Join(p.inbox, target)); err != nil {
			logging.L().Warn("failed to move inbox file", "file", path, "error", err)
		}
	}
	return succeeded
}

func pendingFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".csv":
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

// moveInto renames path into dir, prefixing a timestamp when the name is
// already taken.
func moveInto(path, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	target := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(dir, nowFunc().UTC().Format("20060102T150405")+"-"+filepath.Base(path))
	}
	return os.Rename(path, target)
}

var nowFunc = time.Now
