// Package logging provides contextual zerolog helpers.
package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger returns the global logger.
func Logger() zerolog.Logger {
	return log.Logger
}

// WithComponent returns a logger with a component tag.
func WithComponent(component string) zerolog.Logger {
	return log.With().
		Str("component", component).
		Logger()
}

// WithSession returns a logger with connection context.
func WithSession(sessionID string) zerolog.Logger {
	return log.With().
		Str("sessionId", sessionID).
		Logger()
}

// WithFlush returns a logger with flush context.
func WithFlush(sessionID string, flushSeq int, kind string) zerolog.Logger {
	return log.With().
		Str("sessionId", sessionID).
		Int("flushSeq", flushSeq).
		Str("flushKind", kind).
		Logger()
}

// WithEngine returns a logger with engine context.
func WithEngine(sessionID, provider string) zerolog.Logger {
	return log.With().
		Str("sessionId", sessionID).
		Str("engineProvider", provider).
		Logger()
}
