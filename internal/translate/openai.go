package translate

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/scribelabs/scribe-core/internal/config"
)

type openaiTranslator struct {
	client      *openai.Client
	model       string
	temperature float32
}

// NewOpenAITranslator builds a Translator backed by a chat-completion
// model instructed to translate between the given languages.
func NewOpenAITranslator(cfg config.TranslationConfig) Translator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &openaiTranslator{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		temperature: float32(cfg.Temperature),
	}
}

func (t *openaiTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	system := fmt.Sprintf(
		"Translate the following text from language %s to language %s. Reply with the translation only.",
		sourceLang, targetLang,
	)
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.model,
		Temperature: t.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("translation request: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("translation response contained no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
