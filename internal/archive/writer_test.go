package archive

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestStoreCreatesDirAndCopies(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "upload.m4a")
	if err := os.WriteFile(src, []byte("audio payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	dir := filepath.Join(tmp, "audios")
	w := NewWriter(dir, newLogger())

	dest, err := w.Store(context.Background(), src, "2026-08-29T10-00-00Z_upload.m4a")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read archived file: %v", err)
	}
	if string(data) != "audio payload" {
		t.Fatalf("archived content mismatch: %q", data)
	}
	// Source stays in place; the pipeline owns its deletion.
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("source removed: %v", err)
	}
}

func TestStoreRejectsDuplicateName(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "upload.m4a")
	if err := os.WriteFile(src, []byte("audio payload"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewWriter(filepath.Join(tmp, "audios"), newLogger())
	ctx := context.Background()
	if _, err := w.Store(ctx, src, "same-name.m4a"); err != nil {
		t.Fatalf("first store: %v", err)
	}
	if _, err := w.Store(ctx, src, "same-name.m4a"); err == nil {
		t.Fatal("expected error for duplicate archive name")
	}
}

func TestStoreMissingSource(t *testing.T) {
	tmp := t.TempDir()
	w := NewWriter(filepath.Join(tmp, "audios"), newLogger())
	if _, err := w.Store(context.Background(), filepath.Join(tmp, "nope.m4a"), "x.m4a"); err == nil {
		t.Fatal("expected error for missing source file")
	}
}
