package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"therapy-transcription-service/internal/app"
	"therapy-transcription-service/internal/config"
	"therapy-transcription-service/internal/events"
	internalhttp "therapy-transcription-service/internal/http"
	"therapy-transcription-service/internal/observability"
	"therapy-transcription-service/internal/pipeline"
	"therapy-transcription-service/internal/service/convert"
	"therapy-transcription-service/internal/service/diarize"
	"therapy-transcription-service/internal/service/engine"
	"therapy-transcription-service/internal/service/engine/google"
	"therapy-transcription-service/internal/service/engine/mock"
	"therapy-transcription-service/internal/service/engine/whisper"
	"therapy-transcription-service/internal/service/stream"
	"therapy-transcription-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Logger is not configured yet; fail on stderr.
		panic(err)
	}

	application := app.New(cfg)
	if err := application.Start(); err != nil {
		log.Fatal().Err(err).Msg("Application startup failed")
	}

	// Kafka publisher with separate topics for partial and final transcripts
	publisher := events.New(&events.Config{
		Enabled:      cfg.Kafka.Enabled,
		Brokers:      cfg.Kafka.Brokers,
		TopicPartial: cfg.Kafka.TopicPartial,
		TopicFinal:   cfg.Kafka.TopicFinal,
		Principal:    cfg.Kafka.Principal,
	})
	defer publisher.Close()

	eng, err := newEngine(cfg)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Engine.Provider).Msg("Engine initialization failed")
	}
	defer eng.Close()

	pipe := pipeline.New(
		convert.New(cfg.Convert.FFmpegBin, cfg.Convert.FileTimeout),
		eng,
		pipeline.Options{
			Task:       engine.Mode(cfg.Engine.Task),
			GapSeconds: cfg.Diarize.GapSeconds,
			Labels:     diarize.Labels{First: cfg.Diarize.FirstLabel, Second: cfg.Diarize.SecondLabel},
		},
	)

	registry := stream.NewRegistry()

	wsServer := ws.NewServer(cfg, pipe, publisher, registry)
	wsServer.Start()

	obsServer := observability.NewServer(":"+cfg.Service.ObservabilityPort, internalhttp.NewRouter(application))
	obsServer.Start()

	log.Info().
		Str("wsPort", cfg.Service.WSPort).
		Str("observabilityPort", cfg.Service.ObservabilityPort).
		Str("engine", cfg.Engine.Provider).
		Str("task", cfg.Engine.Task).
		Msg("Transcription service started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Info().Msg("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := wsServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Websocket server shutdown failed")
	}
	registry.CloseAll()
	if err := obsServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Observability server shutdown failed")
	}

	application.Shutdown()
}

// newEngine selects the transcription backend from configuration.
func newEngine(cfg *config.Config) (engine.Engine, error) {
	switch cfg.Engine.Provider {
	case "whisper":
		return whisper.New(cfg.Engine.WhisperModelPath)
	case "google":
		return google.New(context.Background(), cfg.Engine.GoogleCredsFile, cfg.Engine.SampleRateHz)
	default:
		log.Warn().Msg("Using mock engine; transcripts are scripted")
		return mock.New(), nil
	}
}
