package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/scribelabs/scribe-core/internal/bus"
	"github.com/scribelabs/scribe-core/internal/history"
	"github.com/scribelabs/scribe-core/internal/protocol"
	"github.com/scribelabs/scribe-core/internal/runlog"
	"github.com/scribelabs/scribe-core/internal/transcoder"
	"github.com/scribelabs/scribe-core/internal/transcribe"
	"github.com/scribelabs/scribe-core/internal/translate"
)

// fallbackExtension is assumed when the client-supplied file name has no
// extension. The transcoder and transcription capability dispatch on
// extension, not on declared content type.
const fallbackExtension = ".m4a"

// Upload is one client-supplied audio payload. Owned exclusively by a
// single in-flight run.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Options selects optional translation for a run.
type Options struct {
	Translate      bool
	TargetLanguage string
}

// Result is the outcome of a successful run.
type Result struct {
	Text         string
	Original     string
	Language     string
	Translated   bool
	ArchivedFile string
}

// History is the orchestrator's view of the history store.
type History interface {
	Append(ctx context.Context, rec history.Record) error
}

// Archiver is the orchestrator's view of the archive writer.
type Archiver interface {
	Store(ctx context.Context, srcPath, name string) (string, error)
}

// Params wires an Orchestrator.
type Params struct {
	UploadDir        string // empty means os.TempDir
	DefaultTarget    string
	TranscodeTimeout time.Duration
	RecognizeTimeout time.Duration
	TranslateTimeout time.Duration

	Transcoder transcoder.Transcoder
	Recognizer transcribe.Recognizer
	Translator translate.Translator
	History    History
	Archive    Archiver

	Events *bus.Client   // optional
	Runs   *runlog.Store // optional
	Logger *slog.Logger
}

// Orchestrator drives one upload through normalize, transcribe, optional
// translate, archive and history append. Runs are independent; the only
// shared state is behind the History implementation.
type Orchestrator struct {
	p       Params
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *metrics
	clock   func() time.Time
}

func New(p Params) *Orchestrator {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		p:       p,
		logger:  logger.With(slog.String("component", "pipeline")),
		tracer:  otel.Tracer("scribe.pipeline"),
		metrics: newMetrics(),
		clock:   time.Now,
	}
}

// Run executes one pipeline run. On success exactly one archive copy and
// one history append have happened, under the same generated file name.
// On failure no archive file and no history record exist for the run.
func (o *Orchestrator) Run(ctx context.Context, upload Upload, opts Options) (Result, error) {
	start := o.clock()

	if len(upload.Data) == 0 {
		err := &Error{Kind: KindMissingInput, Stage: "ingest"}
		o.metrics.recordFailure(ctx, KindMissingInput, o.clock().Sub(start))
		return Result{}, err
	}

	runID := uuid.NewString()
	target := opts.TargetLanguage
	if opts.Translate && target == "" {
		target = o.p.DefaultTarget
	}

	ctx, span := o.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("run.id", runID),
			attribute.String("upload.filename", upload.Filename),
			attribute.Bool("translate", opts.Translate),
		))
	defer span.End()

	logger := o.logger.With(slog.String("run_id", runID), slog.String("file", upload.Filename))
	o.beginRun(ctx, runID, upload.Filename)

	result, runErr := o.run(ctx, logger, runID, upload, opts, target)
	elapsed := o.clock().Sub(start)

	if runErr != nil {
		kind, _ := KindOf(runErr)
		o.metrics.recordFailure(ctx, kind, elapsed)
		o.finishRun(ctx, runID, "failed")
		o.publishFailed(runID, upload.Filename, runErr)
		logger.Error("pipeline run failed",
			slog.String("kind", string(kind)),
			slog.String("error", runErr.Error()),
			slog.Duration("elapsed", elapsed))
		return Result{}, runErr
	}

	o.metrics.recordSuccess(ctx, result.Translated, elapsed)
	o.finishRun(ctx, runID, "ok")
	o.publishCompleted(runID, result, target)
	logger.Info("pipeline run complete",
		slog.String("language", result.Language),
		slog.Bool("translated", result.Translated),
		slog.Duration("elapsed", elapsed))
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, logger *slog.Logger, runID string, upload Upload, opts Options, target string) (Result, error) {
	// The raw upload lands in a temp file carrying the original extension.
	uploadPath, err := o.spool(upload)
	if err != nil {
		return Result{}, &Error{Kind: KindPersistenceFailed, Stage: "spool", Err: err}
	}
	defer os.Remove(uploadPath)

	wavPath, err := o.normalize(ctx, runID, uploadPath)
	if err != nil {
		return Result{}, err
	}
	defer os.Remove(wavPath)

	recognized, err := o.recognize(ctx, runID, wavPath)
	if err != nil {
		return Result{}, err
	}

	finalText := recognized.Text
	if opts.Translate {
		finalText, err = o.translateText(ctx, runID, recognized, target)
		if err != nil {
			return Result{}, err
		}
	}

	archiveName := o.archiveName(upload.Filename)
	if err := o.persist(ctx, runID, uploadPath, archiveName, recognized, finalText, opts.Translate, target); err != nil {
		return Result{}, err
	}

	return Result{
		Text:         finalText,
		Original:     recognized.Text,
		Language:     recognized.Language,
		Translated:   opts.Translate,
		ArchivedFile: archiveName,
	}, nil
}

func (o *Orchestrator) spool(upload Upload) (string, error) {
	dir := o.p.UploadDir
	if dir == "" {
		dir = os.TempDir()
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	ext := filepath.Ext(upload.Filename)
	if ext == "" {
		ext = fallbackExtension
	}
	f, err := os.CreateTemp(dir, "upload_*"+ext)
	if err != nil {
		return "", fmt.Errorf("create upload temp file: %w", err)
	}
	if _, err := f.Write(upload.Data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("close upload: %w", err)
	}
	return f.Name(), nil
}

func (o *Orchestrator) normalize(ctx context.Context, runID, inputPath string) (string, error) {
	stageStart := o.clock()
	stageCtx, cancel := withTimeout(ctx, o.p.TranscodeTimeout)
	defer cancel()

	wavPath, err := o.p.Transcoder.Normalize(stageCtx, inputPath)
	o.recordStage(ctx, runID, runlog.StageNormalize, stageStart, err)
	if err != nil {
		return "", failure(KindConversionFailed, "normalize", err)
	}
	return wavPath, nil
}

func (o *Orchestrator) recognize(ctx context.Context, runID, wavPath string) (transcribe.Result, error) {
	stageStart := o.clock()
	stageCtx, cancel := withTimeout(ctx, o.p.RecognizeTimeout)
	defer cancel()

	result, err := o.p.Recognizer.Transcribe(stageCtx, wavPath)
	o.recordStage(ctx, runID, runlog.StageTranscribe, stageStart, err)
	if err != nil {
		return transcribe.Result{}, failure(KindTranscriptionFailed, "transcribe", err)
	}
	return result, nil
}

func (o *Orchestrator) translateText(ctx context.Context, runID string, recognized transcribe.Result, target string) (string, error) {
	stageStart := o.clock()
	stageCtx, cancel := withTimeout(ctx, o.p.TranslateTimeout)
	defer cancel()

	// A failed translation fails the request: the caller opted in, so
	// silently degrading to transcription-only would be lying.
	translated, err := o.p.Translator.Translate(stageCtx, recognized.Text, recognized.Language, target)
	o.recordStage(ctx, runID, runlog.StageTranslate, stageStart, err)
	if err != nil {
		return "", failure(KindTranslationFailed, "translate", err)
	}
	return translated, nil
}

func (o *Orchestrator) persist(ctx context.Context, runID, uploadPath, archiveName string, recognized transcribe.Result, finalText string, translated bool, target string) error {
	stageStart := o.clock()
	_, err := o.p.Archive.Store(ctx, uploadPath, archiveName)
	o.recordStage(ctx, runID, runlog.StageArchive, stageStart, err)
	if err != nil {
		return failure(KindPersistenceFailed, "archive", err)
	}

	stageStart = o.clock()
	err = o.p.History.Append(ctx, history.Record{
		File:           archiveName,
		Text:           finalText,
		Original:       recognized.Text,
		Language:       recognized.Language,
		Translated:     translated,
		TargetLanguage: target,
		Timestamp:      o.clock().UTC(),
	})
	o.recordStage(ctx, runID, runlog.StageHistory, stageStart, err)
	if err != nil {
		return failure(KindPersistenceFailed, "history", err)
	}
	return nil
}

// archiveName builds `<timestamp>_<suffix>_<originalName>`. The timestamp
// keeps the directory chronologically sortable; the random suffix closes
// the same-second collision window of timestamp-only names.
func (o *Orchestrator) archiveName(originalName string) string {
	ts := strings.ReplaceAll(o.clock().UTC().Format(time.RFC3339), ":", "-")
	suffix := uuid.NewString()[:8]
	base := filepath.Base(originalName)
	if base == "." || base == "/" || base == "" {
		base = "upload" + fallbackExtension
	}
	return fmt.Sprintf("%s_%s_%s", ts, suffix, base)
}

func (o *Orchestrator) beginRun(ctx context.Context, runID, file string) {
	if o.p.Runs == nil {
		return
	}
	if err := o.p.Runs.BeginRun(ctx, runID, file); err != nil {
		o.logger.Warn("run log begin failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) finishRun(ctx context.Context, runID, status string) {
	if o.p.Runs == nil {
		return
	}
	if err := o.p.Runs.FinishRun(ctx, runID, status); err != nil {
		o.logger.Warn("run log finish failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) recordStage(ctx context.Context, runID, stage string, start time.Time, stageErr error) {
	trace.SpanFromContext(ctx).AddEvent(stage)
	if o.p.Runs == nil {
		return
	}
	evt := runlog.StageEvent{
		RunID:      runID,
		Stage:      stage,
		Status:     "ok",
		DurationMS: o.clock().Sub(start).Milliseconds(),
	}
	if stageErr != nil {
		evt.Status = "failed"
		evt.Detail = stageErr.Error()
	}
	if err := o.p.Runs.AppendStage(ctx, evt); err != nil {
		o.logger.Warn("run log append failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) publishCompleted(runID string, result Result, target string) {
	if o.p.Events == nil {
		return
	}
	evt := protocol.TranscriptionCompleted{
		RunID:          runID,
		File:           result.ArchivedFile,
		Text:           result.Text,
		Original:       result.Original,
		Language:       result.Language,
		Translated:     result.Translated,
		TargetLanguage: target,
		Timestamp:      o.clock().UTC(),
	}
	if err := o.p.Events.Publish(protocol.SubjectTranscriptionCompleted, evt); err != nil {
		o.logger.Warn("failed to publish completion event", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) publishFailed(runID, file string, runErr error) {
	if o.p.Events == nil {
		return
	}
	kind, _ := KindOf(runErr)
	var stage string
	var pe *Error
	if errors.As(runErr, &pe) {
		stage = pe.Stage
	}
	evt := protocol.TranscriptionFailed{
		RunID:     runID,
		File:      file,
		Kind:      string(kind),
		Stage:     stage,
		Timestamp: o.clock().UTC(),
	}
	if err := o.p.Events.Publish(protocol.SubjectTranscriptionFailed, evt); err != nil {
		o.logger.Warn("failed to publish failure event", slog.String("error", err.Error()))
	}
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
