// Package models defines the data structures shared across the
// transcription pipeline and the transcript event boundary.
package models

// Segment is a time-stamped unit of recognized text produced by one
// transcription engine call. Start and End are seconds from the start
// of the submitted audio, with Start <= End; an engine call returns
// segments in non-decreasing Start order.
type Segment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence,omitempty"`
}

// SpeakerTurn is one or more merged adjacent Segments attributed to one
// of two alternating speakers. Consecutive turns in a result never
// share the same Speaker.
type SpeakerTurn struct {
	Speaker int    `json:"speaker"`
	Text    string `json:"text"`
}

// ResultMode distinguishes mid-stream flushes from terminal results.
type ResultMode string

const (
	ModePartial ResultMode = "partial"
	ModeFinal   ResultMode = "final"
)

// TranscriptResult is the externally visible output of one flush or one
// whole-file transcription.
type TranscriptResult struct {
	Mode               ResultMode    `json:"mode"`
	Turns              []SpeakerTurn `json:"turns"`
	Language           string        `json:"language,omitempty"`
	LanguageConfidence float64       `json:"languageConfidence,omitempty"`
}

// TranscriptPartial is the event published for every mid-stream flush.
type TranscriptPartial struct {
	EventType string `json:"eventType"`
	SessionID string `json:"sessionId"`
	FlushSeq  int    `json:"flushSeq"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// TranscriptFinal is the event published for the terminal result of a
// session (stop-triggered flush) or a whole-file submission.
type TranscriptFinal struct {
	EventType          string  `json:"eventType"`
	SessionID          string  `json:"sessionId"`
	Text               string  `json:"text"`
	Language           string  `json:"language,omitempty"`
	LanguageConfidence float64 `json:"languageConfidence,omitempty"`
	AudioBytes         int64   `json:"audioBytes"`
	Timestamp          int64   `json:"timestamp"`
}
