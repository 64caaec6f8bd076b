package history

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Record is one immutable outcome of a completed pipeline run. The JSON
// field names are the store's on-disk format and are consumed by clients
// as-is.
type Record struct {
	File           string    `json:"file"`
	Text           string    `json:"text"`
	Original       string    `json:"original"`
	Language       string    `json:"language"`
	Translated     bool      `json:"translated"`
	TargetLanguage string    `json:"targetLanguage"`
	Timestamp      time.Time `json:"timestamp"`
}

// Store keeps the full history log in a single JSON array file. Appends
// serialize behind a mutex: the read-modify-write against the backing file
// is the only shared mutable state between concurrent pipeline runs.
type Store struct {
	path string
	log  *slog.Logger
	mu   sync.Mutex
}

// Open validates the backing file and returns a Store. A missing file is
// an empty log; a present but unparseable file is an error, surfaced at
// startup rather than on the first append.
func Open(path string, log *slog.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	s := &Store{path: path, log: log}
	if _, err := s.read(); err != nil {
		return nil, err
	}
	return s, nil
}

// Append durably adds one record to the end of the log. Safe for
// concurrent use; a completed append survives process restart.
func (s *Store) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	records = append(records, rec)

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	// Write to a sibling temp file and rename so a crash mid-write never
	// leaves a truncated log behind.
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".history_*")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close history: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

// List returns every record in append order. An absent backing file yields
// an empty, non-nil slice.
func (s *Store) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *Store) read() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("read history: %w", err)
	}
	records := []Record{}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse history: %w", err)
	}
	return records, nil
}
