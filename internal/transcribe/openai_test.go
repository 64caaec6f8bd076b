package transcribe

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scribelabs/scribe-core/internal/config"
)

func writeAudioFixture(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample_16k.wav")
	if err := os.WriteFile(path, []byte("RIFF fake audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenAITranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "whisper-1" {
			t.Errorf("expected model whisper-1, got %q", got)
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file field: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"text":     "hola mundo",
			"language": "es",
		})
	}))
	defer srv.Close()

	rec := NewOpenAIRecognizer(config.TranscriptionConfig{
		Mode:    "openai",
		APIKey:  "sk-test",
		Model:   "whisper-1",
		BaseURL: srv.URL + "/v1",
	})

	got, err := rec.Transcribe(context.Background(), writeAudioFixture(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != "hola mundo" {
		t.Fatalf("expected text %q, got %q", "hola mundo", got.Text)
	}
	if got.Language != "es" {
		t.Fatalf("expected detected language es, got %q", got.Language)
	}
}

func TestOpenAITranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"model overloaded"}}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	rec := NewOpenAIRecognizer(config.TranscriptionConfig{
		Mode:    "openai",
		APIKey:  "sk-test",
		Model:   "whisper-1",
		BaseURL: srv.URL + "/v1",
	})

	if _, err := rec.Transcribe(context.Background(), writeAudioFixture(t)); err == nil {
		t.Fatal("expected error from non-2xx response")
	}
}

func TestOpenAITranscribeMissingFile(t *testing.T) {
	rec := NewOpenAIRecognizer(config.TranscriptionConfig{
		Mode:   "openai",
		APIKey: "sk-test",
		Model:  "whisper-1",
	})
	if _, err := rec.Transcribe(context.Background(), filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected error for missing audio file")
	}
}
