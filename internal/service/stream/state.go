// Package stream holds per-connection session state: the audio chunk
// buffer, the connection lifecycle state machine, and the process-wide
// session registry.
package stream

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the lifecycle state of a connection.
type State int

const (
	// StateConnected - connection accepted, no audio seen yet.
	StateConnected State = iota
	// StateStreaming - accepting chunks and control messages.
	StateStreaming
	// StateProcessing - a buffered flush is being transcribed.
	StateProcessing
	// StateStopped - terminal; the final flush has been dispatched.
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnected:
		return "CONNECTED"
	case StateStreaming:
		return "STREAMING"
	case StateProcessing:
		return "PROCESSING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsTerminal returns true if the state is terminal.
func (s State) IsTerminal() bool {
	return s == StateStopped
}

// Errors for invalid state transitions.
var (
	ErrStopped       = errors.New("connection is stopped")
	ErrNotProcessing = errors.New("no flush in progress")
)

// Lifecycle manages the state machine for a single connection.
// Thread-safe: the read loop and the flush worker both consult it.
//
// State transitions:
//
//	CONNECTED → STREAMING → PROCESSING → STREAMING → ... → STOPPED
//
// Rules:
//   - CONNECTED: first chunk or control message moves to STREAMING
//   - STREAMING: BeginFlush moves to PROCESSING
//   - PROCESSING: EndFlush returns to STREAMING
//   - STOPPED: terminal; all transitions fail
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a lifecycle in CONNECTED state.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateConnected}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// IsStopped returns true once the connection reached its terminal state.
func (l *Lifecycle) IsStopped() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state.IsTerminal()
}

// StartStreaming records the first inbound message. Idempotent while
// the connection is live.
func (l *Lifecycle) StartStreaming() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateConnected:
		l.state = StateStreaming
		return nil
	case StateStreaming, StateProcessing:
		return nil
	case StateStopped:
		return ErrStopped
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// BeginFlush marks a flush in progress.
func (l *Lifecycle) BeginFlush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateConnected, StateStreaming:
		l.state = StateProcessing
		return nil
	case StateProcessing:
		// Chunks may queue a second flush while one is in flight;
		// the worker serializes them, so this is not a violation.
		return nil
	case StateStopped:
		return ErrStopped
	default:
		return fmt.Errorf("unexpected state: %v", l.state)
	}
}

// EndFlush returns to STREAMING after a flush completes. A stop that
// arrived mid-flush wins: the state stays STOPPED.
func (l *Lifecycle) EndFlush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch l.state {
	case StateProcessing:
		l.state = StateStreaming
		return nil
	case StateStopped:
		return nil
	default:
		return ErrNotProcessing
	}
}

// Stop transitions to the terminal state. Idempotent; returns true on
// the first call.
func (l *Lifecycle) Stop() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state.IsTerminal() {
		return false
	}
	l.state = StateStopped
	return true
}
