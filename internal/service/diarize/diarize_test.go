package diarize

import (
	"math/rand"
	"testing"

	"therapy-transcription-service/internal/models"
)

func seg(start, end float64, text string) models.Segment {
	return models.Segment{Start: start, End: end, Text: text}
}

func TestTurns_Empty(t *testing.T) {
	if got := Turns(nil, 1.5); len(got) != 0 {
		t.Errorf("expected no turns for empty input, got %v", got)
	}
	if got := Turns([]models.Segment{}, 1.5); len(got) != 0 {
		t.Errorf("expected no turns for empty slice, got %v", got)
	}
}

func TestTurns_SingleSegment(t *testing.T) {
	got := Turns([]models.Segment{seg(0, 1, "hello")}, 1.5)

	if len(got) != 1 {
		t.Fatalf("expected 1 turn, got %d", len(got))
	}
	if got[0].Speaker != 0 {
		t.Errorf("expected speaker 0 for first turn, got %d", got[0].Speaker)
	}
	if got[0].Text != "hello" {
		t.Errorf("expected text 'hello', got %q", got[0].Text)
	}
}

func TestTurns_GapTogglesSpeaker(t *testing.T) {
	// gap = 5 - 1 = 4 > 1.5 => second segment belongs to the other party
	got := Turns([]models.Segment{
		seg(0, 1, "a"),
		seg(5, 6, "b"),
	}, 1.5)

	if len(got) != 2 {
		t.Fatalf("expected 2 turns, got %d: %v", len(got), got)
	}
	if got[0].Speaker != 0 || got[0].Text != "a" {
		t.Errorf("turn 0: expected speaker 0 text 'a', got %+v", got[0])
	}
	if got[1].Speaker != 1 || got[1].Text != "b" {
		t.Errorf("turn 1: expected speaker 1 text 'b', got %+v", got[1])
	}
}

func TestTurns_SmallGapMerges(t *testing.T) {
	// gap = 1.2 - 1 = 0.2 <= 1.5 => same speaker, merged with one space
	got := Turns([]models.Segment{
		seg(0, 1, "a"),
		seg(1.2, 2, "b"),
	}, 1.5)

	if len(got) != 1 {
		t.Fatalf("expected 1 merged turn, got %d: %v", len(got), got)
	}
	if got[0].Speaker != 0 {
		t.Errorf("expected speaker 0, got %d", got[0].Speaker)
	}
	if got[0].Text != "a b" {
		t.Errorf("expected merged text 'a b', got %q", got[0].Text)
	}
}

func TestTurns_FirstSegmentNeverToggles(t *testing.T) {
	// A late-starting first segment has no prior turn to toggle from.
	got := Turns([]models.Segment{seg(10, 11, "late start")}, 1.5)

	if len(got) != 1 || got[0].Speaker != 0 {
		t.Errorf("expected single speaker-0 turn, got %v", got)
	}
}

func TestTurns_Alternation(t *testing.T) {
	got := Turns([]models.Segment{
		seg(0, 1, "how are you feeling"),
		seg(3, 5, "not great honestly"),
		seg(5.2, 6, "been sleeping badly"),
		seg(9, 10, "tell me more about that"),
	}, 1.5)

	if len(got) != 3 {
		t.Fatalf("expected 3 turns, got %d: %v", len(got), got)
	}
	if got[0].Speaker != 0 {
		t.Errorf("turn 0: expected speaker 0, got %d", got[0].Speaker)
	}
	if got[1].Speaker != 1 || got[1].Text != "not great honestly been sleeping badly" {
		t.Errorf("turn 1: expected merged speaker-1 turn, got %+v", got[1])
	}
	if got[2].Speaker != 0 {
		t.Errorf("turn 2: expected speaker 0, got %d", got[2].Speaker)
	}
}

func TestTurns_SkipsEmptyText(t *testing.T) {
	got := Turns([]models.Segment{
		seg(0, 1, "a"),
		seg(1.1, 2, "   "),
		seg(2.1, 3, "b"),
	}, 1.5)

	if len(got) != 1 {
		t.Fatalf("expected 1 turn, got %d: %v", len(got), got)
	}
	if got[0].Text != "a b" {
		t.Errorf("expected 'a b', got %q", got[0].Text)
	}
}

// No two adjacent turns share a speaker, for any input sequence.
func TestTurns_MergeInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for trial := 0; trial < 200; trial++ {
		var segments []models.Segment
		cursor := 0.0
		for i := 0; i < rng.Intn(20); i++ {
			cursor += rng.Float64() * 3 // gap 0..3s
			end := cursor + 0.2 + rng.Float64()*2
			segments = append(segments, seg(cursor, end, "x"))
			cursor = end
		}

		turns := Turns(segments, 1.5)
		for i := 1; i < len(turns); i++ {
			if turns[i].Speaker == turns[i-1].Speaker {
				t.Fatalf("trial %d: adjacent turns %d and %d share speaker %d",
					trial, i-1, i, turns[i].Speaker)
			}
		}
	}
}

func TestTurns_ZeroGapUsesDefault(t *testing.T) {
	// gap = 4 > default 1.5 => toggle
	got := Turns([]models.Segment{
		seg(0, 1, "a"),
		seg(5, 6, "b"),
	}, 0)

	if len(got) != 2 {
		t.Fatalf("expected 2 turns with default threshold, got %v", got)
	}
}

func TestFormat(t *testing.T) {
	turns := []models.SpeakerTurn{
		{Speaker: 0, Text: "how have you been"},
		{Speaker: 1, Text: "better this week"},
		{Speaker: 0, Text: "glad to hear it"},
	}

	got := Format(turns, DefaultLabels())
	want := "Therapist: how have you been\nPatient: better this week\nTherapist: glad to hear it"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestFormat_CustomLabels(t *testing.T) {
	turns := []models.SpeakerTurn{
		{Speaker: 0, Text: "hello"},
		{Speaker: 1, Text: "hi"},
	}

	got := Format(turns, Labels{First: "Clinician", Second: "Interviewee"})
	want := "Clinician: hello\nInterviewee: hi"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestFormat_NoTurns(t *testing.T) {
	if got := Format(nil, DefaultLabels()); got != NoSpeechText {
		t.Errorf("expected no-speech sentinel, got %q", got)
	}
}
