// Package audit writes the append-only JSONL trail of every retained
// listing, enabling replay and offline inspection of a run.
package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/quartierlabs/prospector/internal/extract"
)

// Record is one audited listing, stamped with the run that produced it.
type Record struct {
	RunID       string    `json:"runId"`
	CollectedAt time.Time `json:"collectedAt"`
	extract.Listing
}

// Log appends listing records to a JSONL file. Safe for concurrent use.
type Log struct {
	mu    sync.Mutex
	runID string
	file  *os.File
	w     *bufio.Writer
}

// Open opens (or creates) the log file in append mode.
func Open(path, runID string) (*Log, error) {
	if path == "" {
		return nil, fmt.Errorf("audit log path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	return &Log{
		runID: runID,
		file:  file,
		w:     bufio.NewWriter(file),
	}, nil
}

// Append writes one record per listing and flushes, so a crash loses at
// most the combo being written.
func (l *Log) Append(listings []extract.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	now := time.Now().UTC()

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, listing := range listings {
		line, err := json.Marshal(Record{
			RunID:       l.runID,
			CollectedAt: now,
			Listing:     listing,
		})
		if err != nil {
			return fmt.Errorf("marshal audit record: %w", err)
		}
		if _, err := l.w.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write audit record: %w", err)
		}
	}
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("flush audit log: %w", err)
	}
	return nil
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.w.Flush(); err != nil {
		return fmt.Errorf("flush audit log: %w", err)
	}
	if err := l.file.Close(); err != nil {
		return fmt.Errorf("close audit log: %w", err)
	}
	return nil
}
