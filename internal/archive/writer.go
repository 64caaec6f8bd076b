package archive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Writer copies original uploads into a fixed archive directory. Names are
// request-unique, so concurrent writers need no coordination here.
type Writer struct {
	dir string
	log *slog.Logger
}

func NewWriter(dir string, log *slog.Logger) *Writer {
	return &Writer{dir: dir, log: log}
}

// Store copies srcPath into the archive directory under name, creating the
// directory on first use. Returns the destination path.
func (w *Writer) Store(ctx context.Context, srcPath, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	src, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	destPath := filepath.Join(w.dir, name)
	dest, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create archive file: %w", err)
	}

	if _, err := io.Copy(dest, src); err != nil {
		dest.Close()
		os.Remove(destPath)
		return "", fmt.Errorf("copy to archive: %w", err)
	}
	if err := dest.Sync(); err != nil {
		dest.Close()
		os.Remove(destPath)
		return "", fmt.Errorf("sync archive file: %w", err)
	}
	if err := dest.Close(); err != nil {
		return "", fmt.Errorf("close archive file: %w", err)
	}

	w.log.Debug("archived upload", slog.String("file", name))
	return destPath, nil
}
