// Package app holds process-wide state for the service.
package app

import (
	"time"

	"github.com/rs/zerolog"

	"speech-transcription-service/internal/config"
	"speech-transcription-service/internal/observability/logging"
)

// ServiceName is reported by the health endpoint.
const ServiceName = "Speech Transcription Service"

// Application is the read-only process state constructed once at startup.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Config
}

// New constructs the Application and initializes global logging.
func New(cfg *config.Config) *Application {
	logging.Init(cfg.LogLevel, cfg.Environment)

	a := &Application{
		Cfg:    cfg,
		Logger: logging.WithComponent("application"),
	}

	a.Logger.Info().
		Str("environment", cfg.Environment).
		Str("sttProvider", cfg.STTProvider).
		Bool("authEnabled", !cfg.DevelopmentMode()).
		Msg("Speech transcription service application created")
	return a
}

// Start performs startup work required before serving traffic.
func (a *Application) Start() {
	a.StartupTime = time.Now().UTC()
	a.Logger.Info().
		Time("startupTime", a.StartupTime).
		Int("port", a.Cfg.Port).
		Msg("Speech transcription service starting")

	if a.Cfg.DevelopmentMode() {
		a.Logger.Warn().Msg("Development mode active: authentication is DISABLED")
	}
}

// Shutdown performs a best-effort cleanup log before process exit.
func (a *Application) Shutdown() {
	a.Logger.Info().
		Dur("uptime", time.Since(a.StartupTime)).
		Msg("Speech transcription service shutting down")
}
