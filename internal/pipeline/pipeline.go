// Package pipeline composes format normalization, engine transcription,
// and speaker turn segmentation into the one call the rest of the
// system consumes: audio in, speaker-labeled transcript out.
package pipeline

import (
	"context"
	"time"

	"therapy-transcription-service/internal/models"
	"therapy-transcription-service/internal/observability/metrics"
	"therapy-transcription-service/internal/service/convert"
	"therapy-transcription-service/internal/service/diarize"
	"therapy-transcription-service/internal/service/engine"
)

// Input is one stream flush or one whole-file submission.
type Input struct {
	// Audio is raw bytes: canonical PCM from the streaming path or an
	// encoded container from a file submission.
	Audio []byte
	// SourceHint names the container extension for encoded input;
	// empty for the streaming path.
	SourceHint string
	// Language is the recognition hint by configured name; empty or
	// "auto" requests detection.
	Language string
	// Mode marks the result partial or final.
	Mode models.ResultMode
}

// Pipeline owns no per-connection state and is safe for concurrent use.
type Pipeline struct {
	normalizer *convert.Normalizer
	engine     engine.Engine
	task       engine.Mode
	gapSeconds float64
	labels     diarize.Labels
	metrics    *metrics.Metrics
}

// Options tune segmentation and the engine task.
type Options struct {
	Task       engine.Mode
	GapSeconds float64
	Labels     diarize.Labels
}

// New wires a pipeline around the given normalizer and engine.
func New(n *convert.Normalizer, e engine.Engine, opts Options) *Pipeline {
	if opts.Task == "" {
		opts.Task = engine.ModeTranslate
	}
	if opts.GapSeconds <= 0 {
		opts.GapSeconds = diarize.DefaultGapSeconds
	}
	if opts.Labels.First == "" {
		opts.Labels = diarize.DefaultLabels()
	}
	return &Pipeline{
		normalizer: n,
		engine:     e,
		task:       opts.Task,
		gapSeconds: opts.GapSeconds,
		labels:     opts.Labels,
		metrics:    metrics.DefaultMetrics,
	}
}

// Transcribe normalizes, transcribes, and segments one audio payload.
// Errors are the typed failures of the stages (convert.Error,
// engine.Error); zero speech is a valid empty result, not an error.
func (p *Pipeline) Transcribe(ctx context.Context, in Input) (models.TranscriptResult, error) {
	start := time.Now()

	pcm, err := p.normalizer.Normalize(ctx, in.Audio, in.SourceHint)
	if err != nil {
		return models.TranscriptResult{}, err
	}

	res, err := p.engine.Transcribe(ctx, engine.Request{
		PCM:      pcm,
		Mode:     p.task,
		Language: in.Language,
	})
	if err != nil {
		return models.TranscriptResult{}, err
	}

	turns := diarize.Turns(res.Segments, p.gapSeconds)
	p.metrics.RecordFlush(string(in.Mode), len(turns), time.Since(start).Seconds())

	return models.TranscriptResult{
		Mode:               in.Mode,
		Turns:              turns,
		Language:           res.Language,
		LanguageConfidence: res.LanguageConfidence,
	}, nil
}

// Format serializes a result's turns with the configured labels. Zero
// turns render as the no-speech sentinel.
func (p *Pipeline) Format(result models.TranscriptResult) string {
	return diarize.Format(result.Turns, p.labels)
}
