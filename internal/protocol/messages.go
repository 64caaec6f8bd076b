package protocol

import "time"

// TranscriptionCompleted announces a finished pipeline run on the bus.
type TranscriptionCompleted struct {
	RunID          string    `json:"run_id"`
	File           string    `json:"file"`
	Text           string    `json:"text"`
	Original       string    `json:"original"`
	Language       string    `json:"language"`
	Translated     bool      `json:"translated"`
	TargetLanguage string    `json:"target_language,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// TranscriptionFailed announces a pipeline run that aborted.
type TranscriptionFailed struct {
	RunID     string    `json:"run_id"`
	File      string    `json:"file"`
	Kind      string    `json:"kind"`
	Stage     string    `json:"stage"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectTranscriptionCompleted = "transcription.completed"
	SubjectTranscriptionFailed    = "transcription.failed"
)
