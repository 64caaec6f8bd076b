package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/history"
	"github.com/scribelabs/scribe-core/internal/pipeline"
)

// uploadField is the multipart form field carrying the audio file.
const uploadField = "audio"

// Runner is the server's view of the pipeline orchestrator.
type Runner interface {
	Run(ctx context.Context, upload pipeline.Upload, opts pipeline.Options) (pipeline.Result, error)
}

// HistoryLister is the server's view of the history store.
type HistoryLister interface {
	List(ctx context.Context) ([]history.Record, error)
}

// Server exposes the transcription pipeline over HTTP.
type Server struct {
	cfg     config.HTTPConfig
	runner  Runner
	history HistoryLister
	logger  *slog.Logger
}

func New(cfg config.HTTPConfig, runner Runner, hist HistoryLister, logger *slog.Logger) *Server {
	return &Server{
		cfg:     cfg,
		runner:  runner,
		history: hist,
		logger:  logger.With(slog.String("component", "http")),
	}
}

// Register mounts the API routes on mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /transcribe", s.handleTranscribe)
	mux.HandleFunc("GET /recordings", s.handleRecordings)
}

// transcribeResponse is shaped by whether translation was requested: the
// translation fields are omitted on transcription-only runs.
type transcribeResponse struct {
	Text     string `json:"text"`
	Original string `json:"original,omitempty"`
	Language string `json:"language,omitempty"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		s.writeError(w, &pipeline.Error{Kind: pipeline.KindMissingInput, Stage: "ingest", Err: err})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.writeError(w, &pipeline.Error{Kind: pipeline.KindMissingInput, Stage: "ingest", Err: err})
		return
	}

	query := r.URL.Query()
	opts := pipeline.Options{
		Translate:      query.Get("translate") == "true",
		TargetLanguage: query.Get("targetLanguage"),
	}
	upload := pipeline.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}

	result, err := s.runner.Run(r.Context(), upload, opts)
	if err != nil {
		s.writeError(w, err)
		return
	}

	resp := transcribeResponse{Text: result.Text}
	if result.Translated {
		resp.Original = result.Original
		resp.Language = result.Language
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordings(w http.ResponseWriter, r *http.Request) {
	records, err := s.history.List(r.Context())
	if err != nil {
		s.logger.Error("history list failed", slog.String("error", err.Error()))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read history"})
		return
	}
	s.writeJSON(w, http.StatusOK, records)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	message := "failed to process audio"
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		status = pe.Kind.HTTPStatus()
		message = pe.Message()
	}
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}
