// Package mock provides a scripted transcription engine for tests and
// for running the service without a model or cloud credentials. It
// simulates realistic engine output: time-stamped segments with
// conversational gaps, a detected language, and empty results for
// empty audio.
package mock

import (
	"context"
	"sync"

	"therapy-transcription-service/internal/models"
	"therapy-transcription-service/internal/service/engine"
)

// DefaultExchanges are sample two-party results the engine cycles
// through. Gaps between segments are sized so the default diarization
// threshold splits them into alternating turns.
var DefaultExchanges = []engine.Result{
	{
		Segments: []models.Segment{
			{Start: 0.0, End: 1.8, Text: "How have you been sleeping this week?"},
			{Start: 4.2, End: 6.5, Text: "Not well, I keep waking up around three."},
			{Start: 6.7, End: 8.0, Text: "And I can't fall back asleep."},
		},
		Language:           "en",
		LanguageConfidence: 0.96,
	},
	{
		Segments: []models.Segment{
			{Start: 0.0, End: 2.1, Text: "That sounds exhausting."},
			{Start: 2.3, End: 3.9, Text: "What do you usually do when that happens?"},
			{Start: 7.0, End: 9.2, Text: "Mostly I just lie there worrying."},
		},
		Language:           "en",
		LanguageConfidence: 0.94,
	},
	{
		Segments: []models.Segment{
			{Start: 0.0, End: 2.4, Text: "Let's talk about the breathing exercise."},
		},
		Language:           "en",
		LanguageConfidence: 0.97,
	},
}

// Engine implements engine.Engine with scripted results.
type Engine struct {
	mu      sync.Mutex
	results []engine.Result
	next    int

	// Calls records every request for test assertions.
	Calls []engine.Request
}

// New creates a mock engine cycling through the default exchanges.
func New() *Engine {
	return NewScripted(DefaultExchanges...)
}

// NewScripted creates a mock engine that returns the given results in
// order, wrapping around when exhausted.
func NewScripted(results ...engine.Result) *Engine {
	return &Engine{results: results}
}

// Transcribe returns the next scripted result. Empty audio returns an
// empty result, matching real engine behavior on silence.
func (e *Engine) Transcribe(ctx context.Context, req engine.Request) (engine.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Calls = append(e.Calls, req)

	if len(req.PCM) == 0 || len(e.results) == 0 {
		return engine.Result{}, nil
	}

	res := e.results[e.next%len(e.results)]
	e.next++
	return res, nil
}

// CallCount returns how many times Transcribe was invoked.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}

// Close is a no-op.
func (e *Engine) Close() error { return nil }
