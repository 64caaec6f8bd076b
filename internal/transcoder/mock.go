package transcoder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

type mockTranscoder struct {
	sampleRate int
	channels   int
}

// NewMock returns a Transcoder that ignores the input payload and writes a
// short silent WAV in the target format. It lets the service run end to
// end without ffmpeg installed.
func NewMock(sampleRate, channels int) Transcoder {
	return &mockTranscoder{sampleRate: sampleRate, channels: channels}
}

func (t *mockTranscoder) Normalize(ctx context.Context, inputPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := os.Stat(inputPath); err != nil {
		return "", fmt.Errorf("stat input: %w", err)
	}

	ext := filepath.Ext(inputPath)
	outPath := strings.TrimSuffix(inputPath, ext) + "_16k.wav"

	out, err := os.Create(outPath)
	if err != nil {
		return "", fmt.Errorf("create output: %w", err)
	}
	defer out.Close()

	// 100 ms of silence.
	samples := t.sampleRate / 10 * t.channels
	buffer := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: t.channels, SampleRate: t.sampleRate},
		Data:   make([]int, samples),
	}

	enc := wav.NewEncoder(out, t.sampleRate, 16, t.channels, 1)
	if err := enc.Write(buffer); err != nil {
		return "", fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("close wav encoder: %w", err)
	}
	return outPath, nil
}
