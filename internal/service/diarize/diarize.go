// Package diarize assigns two-party speaker turns to transcription
// segments using a silence-gap heuristic: the speaker label toggles
// whenever the gap between consecutive segments exceeds a threshold,
// and adjacent same-speaker segments are merged into single turns.
//
// This is a turn-taking heuristic, not voice-print diarization. It
// misattributes turns when one party speaks in short bursts separated
// by long pauses, or when more than two parties are present.
package diarize

import (
	"strings"

	"therapy-transcription-service/internal/models"
)

// DefaultGapSeconds is the silence gap beyond which the speaker toggles.
const DefaultGapSeconds = 1.5

// NoSpeechText is rendered when a flush yields zero segments. It is a
// display sentinel, not an error.
const NoSpeechText = "(No speech detected)"

// Default serialization labels for the two parties.
const (
	DefaultFirstLabel  = "Therapist"
	DefaultSecondLabel = "Patient"
)

// Turns converts an ordered segment sequence into speaker turns.
// Speaker 0 is the first party; the label toggles when the silence gap
// between consecutive segments exceeds gapSeconds. The first segment
// never toggles. Consecutive same-speaker segments are merged, so no
// two adjacent turns share a speaker.
func Turns(segments []models.Segment, gapSeconds float64) []models.SpeakerTurn {
	if len(segments) == 0 {
		return nil
	}
	if gapSeconds <= 0 {
		gapSeconds = DefaultGapSeconds
	}

	speaker := 0
	lastEnd := 0.0

	turns := make([]models.SpeakerTurn, 0, len(segments))
	for i, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			lastEnd = seg.End
			continue
		}

		if i > 0 && seg.Start-lastEnd > gapSeconds {
			speaker = 1 - speaker
		}
		lastEnd = seg.End

		if n := len(turns); n > 0 && turns[n-1].Speaker == speaker {
			turns[n-1].Text += " " + text
			continue
		}
		turns = append(turns, models.SpeakerTurn{Speaker: speaker, Text: text})
	}
	return turns
}

// Labels maps the two speaker slots to display names.
type Labels struct {
	First  string
	Second string
}

// DefaultLabels returns the clinical two-party labels.
func DefaultLabels() Labels {
	return Labels{First: DefaultFirstLabel, Second: DefaultSecondLabel}
}

// Name returns the display name for a speaker slot.
func (l Labels) Name(speaker int) string {
	if speaker == 0 {
		return l.First
	}
	return l.Second
}

// Format serializes turns as "Label: text" lines. Label mapping happens
// only here; the turn algorithm itself stays domain-agnostic. Zero
// turns render as the no-speech sentinel.
func Format(turns []models.SpeakerTurn, labels Labels) string {
	if len(turns) == 0 {
		return NoSpeechText
	}

	var b strings.Builder
	for i, turn := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(labels.Name(turn.Speaker))
		b.WriteString(": ")
		b.WriteString(turn.Text)
	}
	return b.String()
}
