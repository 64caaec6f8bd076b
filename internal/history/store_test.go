package history

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcriptions.json")
	s, err := Open(path, newLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s, path
}

func record(n int) Record {
	return Record{
		File:           fmt.Sprintf("2026-08-29T10-00-0%dZ_rec%d.m4a", n, n),
		Text:           fmt.Sprintf("text %d", n),
		Original:       fmt.Sprintf("texto %d", n),
		Language:       "es",
		Translated:     true,
		TargetLanguage: "en",
		Timestamp:      time.Date(2026, 8, 29, 10, 0, n, 0, time.UTC),
	}
}

func TestListEmpty(t *testing.T) {
	s, _ := newStore(t)
	got, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if got == nil {
		t.Fatal("expected non-nil empty slice for fresh store")
	}
	if len(got) != 0 {
		t.Fatalf("expected empty log, got %d records", len(got))
	}
}

func TestAppendAndList(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := s.Append(ctx, record(i)); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	for i, rec := range got {
		if rec.Text != fmt.Sprintf("text %d", i) {
			t.Fatalf("append order violated at %d: %+v", i, rec)
		}
	}
}

func TestListIsIdempotent(t *testing.T) {
	s, _ := newStore(t)
	ctx := context.Background()
	if err := s.Append(ctx, record(0)); err != nil {
		t.Fatalf("append: %v", err)
	}
	first, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	second, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("list not idempotent: %+v vs %+v", first, second)
	}
}

func TestAppendSurvivesReopen(t *testing.T) {
	s, path := newStore(t)
	ctx := context.Background()
	if err := s.Append(ctx, record(0)); err != nil {
		t.Fatalf("append: %v", err)
	}

	reopened, err := Open(path, newLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.List(ctx)
	if err != nil {
		t.Fatalf("list after reopen: %v", err)
	}
	if len(got) != 1 || got[0].Text != "text 0" {
		t.Fatalf("record lost across reopen: %+v", got)
	}
}

func TestConcurrentAppends(t *testing.T) {
	s, path := newStore(t)
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := s.Append(ctx, record(i)); err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != n {
		t.Fatalf("expected %d records after concurrent appends, got %d", n, len(got))
	}
	seen := make(map[string]bool, n)
	for _, rec := range got {
		if seen[rec.Text] {
			t.Fatalf("duplicate record %q", rec.Text)
		}
		seen[rec.Text] = true
	}

	// The file on disk must always be a well-formed JSON array.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read backing file: %v", err)
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("backing file corrupted: %v", err)
	}
}

func TestOpenRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcriptions.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path, newLogger()); err == nil {
		t.Fatal("expected error for corrupt history file")
	}
}
