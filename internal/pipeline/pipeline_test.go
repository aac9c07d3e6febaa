package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"therapy-transcription-service/internal/models"
	"therapy-transcription-service/internal/service/convert"
	"therapy-transcription-service/internal/service/diarize"
	"therapy-transcription-service/internal/service/engine"
	"therapy-transcription-service/internal/service/engine/mock"
)

// Raw PCM has no container magic, so the normalizer passes it through
// without invoking ffmpeg and the pipeline runs end to end in tests.
func rawPCM(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func newTestPipeline(e engine.Engine) *Pipeline {
	return New(convert.New("", 5*time.Second), e, Options{})
}

func TestTranscribe_SegmentsIntoTurns(t *testing.T) {
	eng := mock.NewScripted(engine.Result{
		Segments: []models.Segment{
			{Start: 0.0, End: 1.5, Text: "How are you feeling today?"},
			{Start: 4.0, End: 6.0, Text: "A bit better than last week."},
		},
		Language:           "en",
		LanguageConfidence: 0.95,
	})
	p := newTestPipeline(eng)

	res, err := p.Transcribe(context.Background(), Input{
		Audio: rawPCM(32000),
		Mode:  models.ModePartial,
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if res.Mode != models.ModePartial {
		t.Errorf("expected partial mode, got %v", res.Mode)
	}
	if len(res.Turns) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(res.Turns))
	}
	if res.Turns[0].Speaker != 0 || res.Turns[1].Speaker != 1 {
		t.Errorf("expected alternating speakers, got %d and %d",
			res.Turns[0].Speaker, res.Turns[1].Speaker)
	}
	if res.Language != "en" {
		t.Errorf("expected language en, got %q", res.Language)
	}
}

func TestTranscribe_EmptyAudioYieldsEmptyResult(t *testing.T) {
	p := newTestPipeline(mock.New())

	res, err := p.Transcribe(context.Background(), Input{
		Audio: nil,
		Mode:  models.ModeFinal,
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if len(res.Turns) != 0 {
		t.Errorf("expected no turns for empty audio, got %d", len(res.Turns))
	}
	if got := p.Format(res); got != diarize.NoSpeechText {
		t.Errorf("expected no-speech sentinel, got %q", got)
	}
}

func TestTranscribe_PassesLanguageHint(t *testing.T) {
	eng := mock.New()
	p := newTestPipeline(eng)

	_, err := p.Transcribe(context.Background(), Input{
		Audio:    rawPCM(4000),
		Language: "hindi",
		Mode:     models.ModePartial,
	})
	if err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}

	if len(eng.Calls) != 1 {
		t.Fatalf("expected 1 engine call, got %d", len(eng.Calls))
	}
	if eng.Calls[0].Language != "hindi" {
		t.Errorf("expected language hint 'hindi', got %q", eng.Calls[0].Language)
	}
}

func TestTranscribe_DefaultTaskIsTranslate(t *testing.T) {
	eng := mock.New()
	p := newTestPipeline(eng)

	if _, err := p.Transcribe(context.Background(), Input{Audio: rawPCM(100)}); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if eng.Calls[0].Mode != engine.ModeTranslate {
		t.Errorf("expected translate task, got %v", eng.Calls[0].Mode)
	}
}

func TestTranscribe_TranscribeTask(t *testing.T) {
	eng := mock.New()
	p := New(convert.New("", 5*time.Second), eng, Options{Task: engine.ModeTranscribe})

	if _, err := p.Transcribe(context.Background(), Input{Audio: rawPCM(100)}); err != nil {
		t.Fatalf("Transcribe failed: %v", err)
	}
	if eng.Calls[0].Mode != engine.ModeTranscribe {
		t.Errorf("expected transcribe task, got %v", eng.Calls[0].Mode)
	}
}

type failingEngine struct{}

func (failingEngine) Transcribe(ctx context.Context, req engine.Request) (engine.Result, error) {
	return engine.Result{}, &engine.Error{Provider: "test", Err: errors.New("model exploded")}
}
func (failingEngine) Close() error { return nil }

func TestTranscribe_EngineErrorPropagates(t *testing.T) {
	p := newTestPipeline(failingEngine{})

	_, err := p.Transcribe(context.Background(), Input{Audio: rawPCM(100)})
	var engErr *engine.Error
	if !errors.As(err, &engErr) {
		t.Fatalf("expected *engine.Error, got %T: %v", err, err)
	}
	if engErr.Provider != "test" {
		t.Errorf("expected provider 'test', got %q", engErr.Provider)
	}
}

func TestTranscribe_ConversionErrorPropagates(t *testing.T) {
	// A binary that does not exist forces the conversion path to fail
	// before reaching the engine.
	n := convert.New("/nonexistent/ffmpeg-binary", time.Second)
	eng := mock.New()
	p := New(n, eng, Options{})

	// RIFF magic forces a conversion attempt.
	payload := append([]byte("RIFF"), rawPCM(100)...)
	_, err := p.Transcribe(context.Background(), Input{Audio: payload, SourceHint: "wav"})

	var convErr *convert.Error
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *convert.Error, got %T: %v", err, err)
	}
	if eng.CallCount() != 0 {
		t.Errorf("engine must not be called when conversion fails, got %d calls", eng.CallCount())
	}
}

func TestFormat_LabelsTurns(t *testing.T) {
	p := New(convert.New("", time.Second), mock.New(), Options{
		Labels: diarize.Labels{First: "Counselor", Second: "Client"},
	})

	res := models.TranscriptResult{
		Turns: []models.SpeakerTurn{
			{Speaker: 0, Text: "Tell me more about that."},
			{Speaker: 1, Text: "It started last month."},
		},
	}
	got := p.Format(res)
	if !strings.Contains(got, "Counselor: Tell me more about that.") {
		t.Errorf("expected first label line, got %q", got)
	}
	if !strings.Contains(got, "Client: It started last month.") {
		t.Errorf("expected second label line, got %q", got)
	}
}
