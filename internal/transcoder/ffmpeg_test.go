package transcoder

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/scribelabs/scribe-core/internal/config"
)

func testConfig(command string) config.TranscoderConfig {
	return config.TranscoderConfig{
		Mode:       "ffmpeg",
		Command:    command,
		SampleRate: 16000,
		Channels:   1,
	}
}

// writeFakeTranscoder writes a shell script that stands in for ffmpeg.
// The script body can reference "$last" for the output path argument.
func writeFakeTranscoder(t *testing.T, dir, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported on windows")
	}
	path := filepath.Join(dir, "fake-ffmpeg")
	script := "#!/bin/sh\nfor last; do :; done\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake transcoder: %v", err)
	}
	return path
}

// wavFixture produces a valid mono 16 kHz WAV via the mock transcoder.
func wavFixture(t *testing.T, dir string) string {
	t.Helper()
	input := filepath.Join(dir, "fixture.m4a")
	if err := os.WriteFile(input, []byte("fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := NewMock(16000, 1).Normalize(context.Background(), input)
	if err != nil {
		t.Fatalf("build wav fixture: %v", err)
	}
	return out
}

func TestNormalizeSuccess(t *testing.T) {
	dir := t.TempDir()
	fixture := wavFixture(t, dir)
	bin := writeFakeTranscoder(t, dir, `cp "`+fixture+`" "$last"`)

	tc, err := NewFFmpeg(testConfig(bin))
	if err != nil {
		t.Fatalf("new transcoder: %v", err)
	}

	input := filepath.Join(dir, "recording.m4a")
	if err := os.WriteFile(input, []byte("fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := tc.Normalize(context.Background(), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(out, "_16k.wav") {
		t.Fatalf("unexpected output path %q", out)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
	// Input must be left alone.
	data, err := os.ReadFile(input)
	if err != nil || string(data) != "fake audio" {
		t.Fatalf("input mutated: %q, %v", data, err)
	}
}

func TestNormalizeCommandFailure(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeTranscoder(t, dir, "echo boom >&2\nexit 1")

	tc, err := NewFFmpeg(testConfig(bin))
	if err != nil {
		t.Fatalf("new transcoder: %v", err)
	}

	input := filepath.Join(dir, "recording.m4a")
	if err := os.WriteFile(input, []byte("fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := tc.Normalize(context.Background(), input); err == nil {
		t.Fatal("expected error from failing transcode command")
	} else if !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected stderr in error, got: %v", err)
	}
}

func TestNormalizeMissingOutput(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeTranscoder(t, dir, "exit 0")

	tc, err := NewFFmpeg(testConfig(bin))
	if err != nil {
		t.Fatalf("new transcoder: %v", err)
	}

	input := filepath.Join(dir, "recording.m4a")
	if err := os.WriteFile(input, []byte("fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := tc.Normalize(context.Background(), input); err == nil {
		t.Fatal("expected error when command produces no output file")
	}
}

func TestNormalizeRejectsMalformedOutput(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeTranscoder(t, dir, `echo "not a wav" > "$last"`)

	tc, err := NewFFmpeg(testConfig(bin))
	if err != nil {
		t.Fatalf("new transcoder: %v", err)
	}

	input := filepath.Join(dir, "recording.m4a")
	if err := os.WriteFile(input, []byte("fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := tc.Normalize(context.Background(), input); err == nil {
		t.Fatal("expected probe to reject non-wav output")
	}
}

func TestNormalizeHonorsContext(t *testing.T) {
	dir := t.TempDir()
	bin := writeFakeTranscoder(t, dir, "sleep 10")

	tc, err := NewFFmpeg(testConfig(bin))
	if err != nil {
		t.Fatalf("new transcoder: %v", err)
	}

	input := filepath.Join(dir, "recording.m4a")
	if err := os.WriteFile(input, []byte("fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := tc.Normalize(ctx, input); err == nil {
		t.Fatal("expected error when context expires")
	}
}

func TestNewFFmpegRejectsEmptyCommand(t *testing.T) {
	if _, err := NewFFmpeg(testConfig("")); err == nil {
		t.Fatal("expected error for empty command")
	}
}
