package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"speech-transcription-service/internal/app"
	"speech-transcription-service/internal/audit"
	"speech-transcription-service/internal/auth"
	"speech-transcription-service/internal/config"
	httpapi "speech-transcription-service/internal/http"
	"speech-transcription-service/internal/observability"
	"speech-transcription-service/internal/service/stt"
	"speech-transcription-service/internal/service/stt/google"
	"speech-transcription-service/internal/service/stt/mock"
	"speech-transcription-service/internal/service/stt/whisper"
	"speech-transcription-service/internal/storage"
)

func main() {
	cfg := config.MustLoad()
	application := app.New(cfg)

	if err := run(application); err != nil {
		application.Logger.Fatal().Err(err).Msg("Service failed")
	}
}

func run(a *app.Application) error {
	cfg := a.Cfg
	ctx := context.Background()

	// Audit trail: append-only file, optionally mirrored to Kafka.
	fileSink, err := audit.NewFileSink(cfg.AuditLogPath)
	if err != nil {
		return fmt.Errorf("open audit trail: %w", err)
	}
	kafkaSink := audit.NewKafkaSink(audit.KafkaConfig{
		Enabled: cfg.AuditKafkaEnabled,
		Brokers: cfg.KafkaBrokers(),
		Topic:   cfg.AuditKafkaTopic,
	})
	auditor := audit.New(fileSink, kafkaSink)
	defer auditor.Close()

	transcriber, err := newTranscriber(ctx, cfg)
	if err != nil {
		return err
	}
	transcriber = stt.NewBounded(transcriber, cfg.MaxConcurrentTranscriptions)
	defer transcriber.Close()

	gate := auth.NewGate(cfg.APIKey, cfg.DevelopmentMode())
	store := storage.New("", cfg.MaxFileBytes())
	handler := httpapi.NewHandler(a, gate, store, transcriber, auditor)
	router := httpapi.NewRouter(handler)

	if cfg.MetricsAddr != "" {
		obs := observability.NewServer(cfg.MetricsAddr)
		obs.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(shutdownCtx)
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.Start()
		a.Logger.Info().Str("addr", srv.Addr).Msg("Transcription API listening")
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("http server closed: %w", err)
	case sig := <-shutdown:
		a.Logger.Info().Str("signal", sig.String()).Msg("Start shutdown")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	a.Shutdown()
	return nil
}

// newTranscriber selects the STT provider from configuration.
func newTranscriber(ctx context.Context, cfg *config.Config) (stt.Transcriber, error) {
	switch cfg.STTProvider {
	case "mock":
		return mock.New(), nil
	case "whisper":
		return whisper.New(cfg.WhisperServerURL, cfg.WhisperModel), nil
	case "google":
		return google.New(ctx)
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.STTProvider)
	}
}
