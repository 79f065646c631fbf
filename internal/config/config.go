// Package config loads service configuration from the environment.
package config

import (
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all environment-sourced settings for the service.
type Config struct {
	APIKey        string `env:"API_KEY" env-default:""`
	Environment   string `env:"ENVIRONMENT" env-default:"production"`
	MaxFileSizeMB int64  `env:"MAX_FILE_SIZE_MB" env-default:"25"`
	Port          int    `env:"PORT" env-default:"5000"`
	LogLevel      string `env:"LOG_LEVEL" env-default:"info"`
	MetricsAddr   string `env:"METRICS_ADDR" env-default:":9090"`

	AuditLogPath      string `env:"AUDIT_LOG_PATH" env-default:"transcription_audit.log"`
	AuditKafkaEnabled bool   `env:"AUDIT_KAFKA_ENABLED" env-default:"false"`
	AuditKafkaBrokers string `env:"AUDIT_KAFKA_BROKERS" env-default:""`
	AuditKafkaTopic   string `env:"AUDIT_KAFKA_TOPIC" env-default:"transcription-audit"`

	STTProvider      string `env:"STT_PROVIDER" env-default:"whisper"`
	WhisperServerURL string `env:"WHISPER_SERVER_URL" env-default:"http://localhost:8000"`
	WhisperModel     string `env:"WHISPER_MODEL" env-default:"openai/whisper-base"`
	WhisperDevice    string `env:"WHISPER_DEVICE" env-default:"cpu"`
	DefaultLanguage  string `env:"STT_LANGUAGE_DEFAULT" env-default:"english"`

	MaxConcurrentTranscriptions int64 `env:"MAX_CONCURRENT_TRANSCRIPTIONS" env-default:"2"`
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// MustLoad reads configuration from the environment and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic("failed to read environment variables: " + err.Error())
	}
	return cfg
}

// DevelopmentMode reports whether the auth bypass for local testing is active.
func (c *Config) DevelopmentMode() bool {
	return c.Environment == "development"
}

// MaxFileBytes returns the upload size ceiling in bytes.
func (c *Config) MaxFileBytes() int64 {
	return c.MaxFileSizeMB * 1024 * 1024
}

// KafkaBrokers returns the audit Kafka broker list parsed from the
// comma-separated AUDIT_KAFKA_BROKERS value.
func (c *Config) KafkaBrokers() []string {
	if c.AuditKafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.AuditKafkaBrokers, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
