// Package engine defines the contract for transcription engines:
// canonical PCM in, time-stamped segments out. Implementations are
// loaded once at process startup and must be safe for concurrent
// invocation across connections.
package engine

import (
	"context"
	"fmt"

	"therapy-transcription-service/internal/models"
)

// Mode selects the inference task.
type Mode string

const (
	// ModeTranscribe recognizes speech in its native script.
	ModeTranscribe Mode = "transcribe"
	// ModeTranslate recognizes speech and translates to English.
	ModeTranslate Mode = "translate"
)

// Request is one inference call over a complete PCM buffer.
type Request struct {
	// PCM is canonical audio: 16 kHz, mono, s16le.
	PCM  []byte
	Mode Mode
	// Language is a recognition hint by configured name ("hindi",
	// "english", ...). Empty or "auto" requests detection.
	Language string
}

// Result is the ordered output of one inference call. Segments are
// sorted by start time; silence yields an empty slice, not an error.
type Result struct {
	Segments           []models.Segment
	Language           string
	LanguageConfidence float64
}

// Engine is a blocking, CPU/GPU-bound transcription backend.
type Engine interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
	Close() error
}

// Error wraps any failure raised by an engine call.
type Error struct {
	Provider string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("engine %s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
