package transcribe

import (
	"context"
)

// Result captures recognizer output: the recognized text and the language
// the capability detected in the audio.
type Result struct {
	Text     string
	Language string
}

// Recognizer abstracts the external speech-to-text capability. One call per
// invocation, no internal retry.
type Recognizer interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}
