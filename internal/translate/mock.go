package translate

import (
	"context"
	"fmt"
)

type mockTranslator struct{}

func NewMockTranslator() Translator {
	return &mockTranslator{}
}

func (m *mockTranslator) Translate(_ context.Context, text, sourceLang, targetLang string) (string, error) {
	return fmt.Sprintf("[%s->%s] %s", sourceLang, targetLang, text), nil
}
