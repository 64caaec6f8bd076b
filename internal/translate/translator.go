package translate

import (
	"context"
)

// Translator abstracts the external text-translation capability. One call
// per invocation, no internal retry.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}
