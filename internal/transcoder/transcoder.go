package transcoder

import (
	"context"
)

// Transcoder normalizes arbitrary input audio into a mono 16 kHz WAV file
// suitable for transcription. Implementations must not mutate the input
// file and must write only the returned output path.
type Transcoder interface {
	Normalize(ctx context.Context, inputPath string) (string, error)
}
