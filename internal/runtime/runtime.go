package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scribelabs/scribe-core/internal/archive"
	"github.com/scribelabs/scribe-core/internal/bus"
	"github.com/scribelabs/scribe-core/internal/config"
	"github.com/scribelabs/scribe-core/internal/history"
	"github.com/scribelabs/scribe-core/internal/natsserver"
	"github.com/scribelabs/scribe-core/internal/pipeline"
	"github.com/scribelabs/scribe-core/internal/runlog"
	"github.com/scribelabs/scribe-core/internal/server"
	"github.com/scribelabs/scribe-core/internal/transcoder"
	"github.com/scribelabs/scribe-core/internal/transcribe"
	"github.com/scribelabs/scribe-core/internal/translate"
)

// Runtime assembles the configured components and runs the HTTP service
// until the context is cancelled.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	runs, err := runlog.Open(ctx, r.cfg.RunLog, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open run log: %w", err)
	}
	defer func() {
		if err := runs.Close(); err != nil {
			r.logger.Warn("run log close error", slog.String("error", err.Error()))
		}
	}()

	var embedded *natsserver.EmbeddedServer
	var events *bus.Client
	if r.cfg.Bus.Enabled {
		busCfg := r.cfg.Bus
		if busCfg.Embedded {
			embedded, err = natsserver.Start(busCfg, r.logger)
			if err != nil {
				return fmt.Errorf("failed to start embedded bus: %w", err)
			}
			defer embedded.Shutdown()
			busCfg.Servers = []string{fmt.Sprintf("nats://127.0.0.1:%d", busCfg.Port)}
		}
		events, err = bus.Connect(ctx, busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("failed to connect to bus: %w", err)
		}
		defer events.Close()
	}

	var transcode transcoder.Transcoder
	switch r.cfg.Transcoder.Mode {
	case "mock":
		transcode = transcoder.NewMock(r.cfg.Transcoder.SampleRate, r.cfg.Transcoder.Channels)
	default:
		transcode, err = transcoder.NewFFmpeg(r.cfg.Transcoder)
		if err != nil {
			return fmt.Errorf("failed to build transcoder: %w", err)
		}
	}

	var recognizer transcribe.Recognizer
	if r.cfg.Transcription.Mode == "mock" {
		recognizer = transcribe.NewMockRecognizer()
	} else {
		recognizer = transcribe.NewOpenAIRecognizer(r.cfg.Transcription)
	}

	var translator translate.Translator
	if r.cfg.Translation.Mode == "mock" {
		translator = translate.NewMockTranslator()
	} else {
		translator = translate.NewOpenAITranslator(r.cfg.Translation)
	}

	hist, err := history.Open(r.cfg.Storage.HistoryPath, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	archiver := archive.NewWriter(r.cfg.Storage.ArchiveDir, r.logger)

	orchestrator := pipeline.New(pipeline.Params{
		UploadDir:        r.cfg.Storage.UploadDir,
		DefaultTarget:    r.cfg.Translation.DefaultTarget,
		TranscodeTimeout: time.Duration(r.cfg.Transcoder.TimeoutMS) * time.Millisecond,
		RecognizeTimeout: time.Duration(r.cfg.Transcription.TimeoutMS) * time.Millisecond,
		TranslateTimeout: time.Duration(r.cfg.Translation.TimeoutMS) * time.Millisecond,
		Transcoder:       transcode,
		Recognizer:       recognizer,
		Translator:       translator,
		History:          hist,
		Archive:          archiver,
		Events:           events,
		Runs:             runs,
		Logger:           r.logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}
	server.New(r.cfg.HTTP, orchestrator, hist, r.logger).Register(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
			cancel()
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("transcoder", r.cfg.Transcoder.Mode),
		slog.String("transcription", r.cfg.Transcription.Mode),
		slog.String("translation", r.cfg.Translation.Mode),
		slog.Bool("bus", r.cfg.Bus.Enabled))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
