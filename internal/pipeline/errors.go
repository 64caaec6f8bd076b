package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Kind is a machine-readable classification of a pipeline failure.
type Kind string

const (
	KindMissingInput        Kind = "MISSING_INPUT"
	KindConversionFailed    Kind = "CONVERSION_FAILED"
	KindTranscriptionFailed Kind = "TRANSCRIPTION_FAILED"
	KindTranslationFailed   Kind = "TRANSLATION_FAILED"
	KindPersistenceFailed   Kind = "PERSISTENCE_FAILED"
	KindTimeout             Kind = "TIMEOUT"
)

// Error is the failure type returned by the orchestrator. It carries the
// stage that failed and the underlying cause for logging.
type Error struct {
	Kind  Kind
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Stage)
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the client-facing error description. Upstream causes
// stay in the server log.
func (e *Error) Message() string {
	switch e.Kind {
	case KindMissingInput:
		return "no audio file in request"
	case KindConversionFailed:
		return "failed to convert audio"
	case KindTranscriptionFailed:
		return "failed to transcribe audio"
	case KindTranslationFailed:
		return "failed to translate transcript"
	case KindPersistenceFailed:
		return "failed to persist result"
	case KindTimeout:
		return "processing timed out"
	}
	return "failed to process audio"
}

// HTTPStatus maps a failure kind onto a response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindMissingInput:
		return http.StatusBadRequest
	case KindTranscriptionFailed, KindTranslationFailed:
		return http.StatusBadGateway
	case KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// KindOf extracts the failure kind from an error chain.
func KindOf(err error) (Kind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// failure wraps err as a pipeline Error, upgrading deadline expiry to the
// timeout kind so a hung external call is distinguishable from a broken one.
func failure(kind Kind, stage string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Stage: stage, Err: err}
}
