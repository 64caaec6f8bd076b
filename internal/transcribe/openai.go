package transcribe

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/scribelabs/scribe-core/internal/config"
)

type openaiRecognizer struct {
	client *openai.Client
	model  string
}

// NewOpenAIRecognizer builds a Recognizer backed by the OpenAI audio
// transcription endpoint (Whisper). BaseURL may point at any
// API-compatible server.
func NewOpenAIRecognizer(cfg config.TranscriptionConfig) Recognizer {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openaiRecognizer{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

func (r *openaiRecognizer) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	resp, err := r.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    r.model,
		FilePath: audioPath,
		// Verbose JSON carries the detected language alongside the text.
		Format: openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Result{}, fmt.Errorf("transcription request: %w", err)
	}
	return Result{Text: resp.Text, Language: resp.Language}, nil
}
