// Package whisper provides the local whisper.cpp transcription engine.
// The model is loaded once at startup and shared by all connections;
// each call gets its own inference context.
package whisper

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	whisper "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
	"github.com/rs/zerolog/log"

	"therapy-transcription-service/internal/models"
	"therapy-transcription-service/internal/observability/metrics"
	"therapy-transcription-service/internal/service/engine"
)

const provider = "whisper"

// Engine implements engine.Engine using whisper.cpp.
type Engine struct {
	model   whisper.Model
	metrics *metrics.Metrics
}

// New loads a ggml whisper model from the given path. The caller must
// call Close when done.
func New(modelPath string) (*Engine, error) {
	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load whisper model %q: %w", modelPath, err)
	}

	log.Info().
		Str("modelPath", modelPath).
		Bool("multilingual", model.IsMultilingual()).
		Msg("Whisper model loaded")

	return &Engine{
		model:   model,
		metrics: metrics.DefaultMetrics,
	}, nil
}

// Transcribe runs one blocking inference pass over the PCM buffer.
// Empty audio returns an empty result without touching the model.
func (e *Engine) Transcribe(ctx context.Context, req engine.Request) (engine.Result, error) {
	samples := engine.DecodePCM16(req.PCM)
	if len(samples) == 0 {
		return engine.Result{}, nil
	}

	start := time.Now()
	res, err := e.process(samples, req)
	e.metrics.RecordEngineCall(provider, err, time.Since(start).Seconds())
	if err != nil {
		return engine.Result{}, &engine.Error{Provider: provider, Err: err}
	}
	return res, nil
}

func (e *Engine) process(samples []float32, req engine.Request) (engine.Result, error) {
	wctx, err := e.model.NewContext()
	if err != nil {
		return engine.Result{}, fmt.Errorf("create context: %w", err)
	}

	lang := "auto"
	if code, ok := engine.LanguageCode(req.Language); ok {
		lang = code
	}
	if err := wctx.SetLanguage(lang); err != nil {
		return engine.Result{}, fmt.Errorf("set language %q: %w", lang, err)
	}
	wctx.SetTranslate(req.Mode == engine.ModeTranslate)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return engine.Result{}, fmt.Errorf("process: %w", err)
	}

	var segments []models.Segment
	for {
		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return engine.Result{}, fmt.Errorf("next segment: %w", err)
		}
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		segments = append(segments, models.Segment{
			Start: seg.Start.Seconds(),
			End:   seg.End.Seconds(),
			Text:  text,
		})
	}

	detected := wctx.DetectedLanguage()
	if detected == "" {
		detected = lang
	}

	// The bindings do not expose language probability, so confidence
	// stays zero and is omitted from serialized results.
	return engine.Result{
		Segments: segments,
		Language: detected,
	}, nil
}

// Close releases the model resources.
func (e *Engine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}
