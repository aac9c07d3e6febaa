// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all tunables for the transcription service.
type Config struct {
	Service       ServiceConfig
	Stream        StreamConfig
	Diarize       DiarizeConfig
	Engine        EngineConfig
	Convert       ConvertConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// ServiceConfig identifies the process and its listen ports.
type ServiceConfig struct {
	Principal         string `env:"SERVICE_PRINCIPAL" envDefault:"svc-transcription"`
	WSPort            string `env:"WS_PORT" envDefault:"8003"`
	ObservabilityPort string `env:"OBSERVABILITY_PORT" envDefault:"9090"`
}

// StreamConfig bounds per-connection buffering.
type StreamConfig struct {
	// FlushThreshold is the number of buffered chunks that triggers a
	// flush. A trade-off between added latency and per-call engine
	// overhead.
	FlushThreshold int `env:"FLUSH_THRESHOLD_CHUNKS" envDefault:"10"`
	// FlushQueueDepth is the number of flushes that may be pending per
	// connection before chunk ingestion blocks.
	FlushQueueDepth int   `env:"FLUSH_QUEUE_DEPTH" envDefault:"4"`
	MaxMessageBytes int64 `env:"WS_MAX_MESSAGE_BYTES" envDefault:"10485760"`
}

// DiarizeConfig tunes the two-party speaker turn heuristic.
type DiarizeConfig struct {
	// GapSeconds is the silence gap beyond which the speaker label
	// toggles. The upstream clinical deployment used 0.5.
	GapSeconds  float64 `env:"DIARIZE_GAP_SECONDS" envDefault:"1.5"`
	FirstLabel  string  `env:"DIARIZE_FIRST_LABEL" envDefault:"Therapist"`
	SecondLabel string  `env:"DIARIZE_SECOND_LABEL" envDefault:"Patient"`
}

// EngineConfig selects and configures the transcription engine.
type EngineConfig struct {
	// Provider is one of whisper, google, mock.
	Provider string `env:"ENGINE_PROVIDER" envDefault:"mock"`
	// Task is transcribe (native script) or translate (English pivot).
	Task             string   `env:"ENGINE_TASK" envDefault:"translate"`
	WhisperModelPath string   `env:"WHISPER_MODEL_PATH"`
	GoogleCredsFile  string   `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	SampleRateHz     int      `env:"ENGINE_SAMPLE_RATE_HZ" envDefault:"16000"`
	Languages        []string `env:"ENGINE_LANGUAGES" envDefault:"auto,english,hindi,tamil,telugu,kannada,malayalam,bengali,punjabi"`
	DefaultLanguage  string   `env:"ENGINE_DEFAULT_LANGUAGE" envDefault:"auto"`
}

// ConvertConfig configures the external format normalizer.
type ConvertConfig struct {
	FFmpegBin   string        `env:"FFMPEG_BIN" envDefault:"ffmpeg"`
	FileTimeout time.Duration `env:"CONVERT_TIMEOUT" envDefault:"30s"`
}

// KafkaConfig configures transcript event publishing.
type KafkaConfig struct {
	Enabled      bool     `env:"KAFKA_ENABLED" envDefault:"false"`
	Brokers      []string `env:"KAFKA_BROKERS"`
	TopicPartial string   `env:"KAFKA_TOPIC_PARTIAL" envDefault:"session.transcript.partial"`
	TopicFinal   string   `env:"KAFKA_TOPIC_FINAL" envDefault:"session.transcript.final"`
	Principal    string   `env:"KAFKA_PRINCIPAL"`
}

// ObservabilityConfig configures logging.
type ObservabilityConfig struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	Env      string `env:"ENV" envDefault:"production"`
}

// Load parses configuration from the environment and validates it.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("environment variables are invalid: %w", err)
	}
	if cfg.Kafka.Principal == "" {
		cfg.Kafka.Principal = cfg.Service.Principal
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	if c.Stream.FlushThreshold <= 0 {
		return fmt.Errorf("FLUSH_THRESHOLD_CHUNKS must be positive, got %d", c.Stream.FlushThreshold)
	}
	if c.Stream.FlushQueueDepth <= 0 {
		return fmt.Errorf("FLUSH_QUEUE_DEPTH must be positive, got %d", c.Stream.FlushQueueDepth)
	}
	if c.Diarize.GapSeconds <= 0 {
		return fmt.Errorf("DIARIZE_GAP_SECONDS must be positive, got %v", c.Diarize.GapSeconds)
	}
	switch c.Engine.Provider {
	case "whisper", "google", "mock":
	default:
		return fmt.Errorf("ENGINE_PROVIDER must be whisper, google, or mock, got %q", c.Engine.Provider)
	}
	switch c.Engine.Task {
	case "transcribe", "translate":
	default:
		return fmt.Errorf("ENGINE_TASK must be transcribe or translate, got %q", c.Engine.Task)
	}
	if c.Engine.Provider == "whisper" && c.Engine.WhisperModelPath == "" {
		return fmt.Errorf("WHISPER_MODEL_PATH is required when ENGINE_PROVIDER=whisper")
	}
	if len(c.Engine.Languages) == 0 {
		return fmt.Errorf("ENGINE_LANGUAGES must not be empty")
	}
	if !c.LanguageConfigured(c.Engine.DefaultLanguage) {
		return fmt.Errorf("ENGINE_DEFAULT_LANGUAGE %q is not in ENGINE_LANGUAGES", c.Engine.DefaultLanguage)
	}
	if c.Convert.FileTimeout <= 0 {
		return fmt.Errorf("CONVERT_TIMEOUT must be positive, got %v", c.Convert.FileTimeout)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when KAFKA_ENABLED=true")
	}
	return nil
}

// LanguageConfigured reports whether lang is in the configured set.
func (c *Config) LanguageConfigured(lang string) bool {
	for _, l := range c.Engine.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// IsDevelopment reports whether the service runs in dev mode.
func (c *Config) IsDevelopment() bool {
	return c.Observability.Env == "dev" || c.Observability.Env == "development"
}
