package ws

import (
	"encoding/base64"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"therapy-transcription-service/internal/config"
	"therapy-transcription-service/internal/events"
	"therapy-transcription-service/internal/models"
	"therapy-transcription-service/internal/pipeline"
	"therapy-transcription-service/internal/service/convert"
	"therapy-transcription-service/internal/service/diarize"
	"therapy-transcription-service/internal/service/engine"
	"therapy-transcription-service/internal/service/engine/mock"
	"therapy-transcription-service/internal/service/stream"
)

func testConfig() *config.Config {
	return &config.Config{
		Service: config.ServiceConfig{Principal: "svc-test", WSPort: "0"},
		Stream: config.StreamConfig{
			FlushThreshold:  10,
			FlushQueueDepth: 4,
			MaxMessageBytes: 10 << 20,
		},
		Diarize: config.DiarizeConfig{
			GapSeconds:  1.5,
			FirstLabel:  "Therapist",
			SecondLabel: "Patient",
		},
		Engine: config.EngineConfig{
			Provider:        "mock",
			Task:            "translate",
			Languages:       []string{"auto", "english", "hindi"},
			DefaultLanguage: "auto",
		},
	}
}

// dialTestServer starts a full websocket server around the given engine
// and returns a connected client.
func dialTestServer(t *testing.T, eng engine.Engine, ffmpegBin string) *websocket.Conn {
	t.Helper()

	cfg := testConfig()
	pipe := pipeline.New(convert.New(ffmpegBin, 2*time.Second), eng, pipeline.Options{
		Task:       engine.ModeTranslate,
		GapSeconds: cfg.Diarize.GapSeconds,
		Labels:     diarize.Labels{First: cfg.Diarize.FirstLabel, Second: cfg.Diarize.SecondLabel},
	})
	srv := NewServer(cfg, pipe, events.New(nil), stream.NewRegistry())

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func readMessage(t *testing.T, c *websocket.Conn) serverMessage {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(5 * time.Second))
	var msg serverMessage
	if err := c.ReadJSON(&msg); err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return msg
}

func mustReadType(t *testing.T, c *websocket.Conn, expected string) serverMessage {
	t.Helper()
	msg := readMessage(t, c)
	if msg.Type != expected {
		t.Fatalf("expected %q message, got %q (%+v)", expected, msg.Type, msg)
	}
	return msg
}

func sendJSON(t *testing.T, c *websocket.Conn, payload string) {
	t.Helper()
	if err := c.WriteMessage(websocket.TextMessage, []byte(payload)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
}

// Zero bytes carry no container signature, so they pass the normalizer
// unchanged and reach the engine as-is.
func sendChunks(t *testing.T, c *websocket.Conn, n, size int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := c.WriteMessage(websocket.BinaryMessage, make([]byte, size)); err != nil {
			t.Fatalf("chunk write failed: %v", err)
		}
	}
}

func TestHandler_Welcome(t *testing.T) {
	c := dialTestServer(t, mock.New(), "ffmpeg")

	msg := mustReadType(t, c, typeConnected)
	if msg.SessionID == "" {
		t.Error("expected a session ID in the welcome message")
	}
	found := false
	for _, l := range msg.Languages {
		if l == "hindi" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected configured languages in welcome, got %v", msg.Languages)
	}
	if msg.Mode != "translate" {
		t.Errorf("expected task mode in welcome, got %q", msg.Mode)
	}
}

func TestHandler_StreamPartialThenFinal(t *testing.T) {
	eng := mock.NewScripted(
		engine.Result{Segments: []models.Segment{{Start: 0, End: 1, Text: "First exchange."}}},
		engine.Result{Segments: []models.Segment{{Start: 0, End: 1, Text: "Closing remarks."}}},
	)
	c := dialTestServer(t, eng, "ffmpeg")
	mustReadType(t, c, typeConnected)

	// 12 chunks at threshold 10: one partial mid-stream, remainder on stop.
	sendChunks(t, c, 12, 4000)
	sendJSON(t, c, `{"type":"stop"}`)

	partial := mustReadType(t, c, typePartial)
	if partial.Text != "Therapist: First exchange." {
		t.Errorf("unexpected partial text: %q", partial.Text)
	}

	final := mustReadType(t, c, typeFinal)
	if final.Text != "Therapist: Closing remarks." {
		t.Errorf("unexpected final text: %q", final.Text)
	}
	if final.Mode != "" {
		t.Errorf("stream final must not carry file mode, got %q", final.Mode)
	}

	if eng.CallCount() != 2 {
		t.Fatalf("expected 2 engine calls, got %d", eng.CallCount())
	}
	if got := len(eng.Calls[0].PCM); got != 10*4000 {
		t.Errorf("expected first flush of %d bytes, got %d", 10*4000, got)
	}
	if got := len(eng.Calls[1].PCM); got != 2*4000 {
		t.Errorf("expected final flush of %d bytes, got %d", 2*4000, got)
	}
}

func TestHandler_SetLanguage(t *testing.T) {
	eng := mock.New()
	c := dialTestServer(t, eng, "ffmpeg")
	mustReadType(t, c, typeConnected)

	sendJSON(t, c, `{"type":"set_language","language":"hindi"}`)
	msg := mustReadType(t, c, typeLanguageChanged)
	if msg.Language != "hindi" {
		t.Errorf("expected language hindi, got %q", msg.Language)
	}

	sendChunks(t, c, 10, 1000)
	mustReadType(t, c, typePartial)

	if eng.CallCount() != 1 {
		t.Fatalf("expected 1 engine call, got %d", eng.CallCount())
	}
	if eng.Calls[0].Language != "hindi" {
		t.Errorf("expected hindi hint on flush, got %q", eng.Calls[0].Language)
	}
}

func TestHandler_UnsupportedLanguageKeepsConnection(t *testing.T) {
	c := dialTestServer(t, mock.New(), "ffmpeg")
	mustReadType(t, c, typeConnected)

	sendJSON(t, c, `{"type":"set_language","language":"klingon"}`)
	msg := mustReadType(t, c, typeError)
	if !strings.Contains(msg.Message, "klingon") {
		t.Errorf("expected error naming the language, got %q", msg.Message)
	}

	// The connection stays usable after the protocol error.
	sendJSON(t, c, `{"type":"stop"}`)
	mustReadType(t, c, typeFinal)
}

func TestHandler_AudioFile(t *testing.T) {
	eng := mock.NewScripted(
		engine.Result{Segments: []models.Segment{{Start: 0, End: 2, Text: "Uploaded session recording."}}},
	)
	c := dialTestServer(t, eng, "ffmpeg")
	mustReadType(t, c, typeConnected)

	data := base64.StdEncoding.EncodeToString(make([]byte, 8000))
	sendJSON(t, c, `{"type":"audio_file","data":"`+data+`"}`)

	mustReadType(t, c, typeProcessing)
	final := mustReadType(t, c, typeFinal)
	if final.Mode != "file" {
		t.Errorf("expected file mode on batch final, got %q", final.Mode)
	}
	if final.Text != "Therapist: Uploaded session recording." {
		t.Errorf("unexpected final text: %q", final.Text)
	}
}

func TestHandler_AudioFileDataURL(t *testing.T) {
	c := dialTestServer(t, mock.New(), "ffmpeg")
	mustReadType(t, c, typeConnected)

	data := "data:audio/mp4;base64," + base64.StdEncoding.EncodeToString(make([]byte, 4000))
	sendJSON(t, c, `{"type":"audio_file","data":"`+data+`"}`)

	mustReadType(t, c, typeProcessing)
	mustReadType(t, c, typeFinal)
}

func TestHandler_ConversionFailureIsolated(t *testing.T) {
	// A missing binary makes every real conversion fail.
	c := dialTestServer(t, mock.New(), "/nonexistent/ffmpeg")
	mustReadType(t, c, typeConnected)

	// RIFF magic forces a conversion attempt, which fails.
	encoded := base64.StdEncoding.EncodeToString(append([]byte("RIFF"), make([]byte, 100)...))
	sendJSON(t, c, `{"type":"audio_file","data":"`+encoded+`","format":"wav"}`)
	mustReadType(t, c, typeProcessing)
	msg := mustReadType(t, c, typeError)
	if !strings.Contains(msg.Message, "conversion failed") {
		t.Errorf("expected conversion failure message, got %q", msg.Message)
	}

	// A bare PCM submission needs no conversion and still succeeds.
	pcm := base64.StdEncoding.EncodeToString(make([]byte, 4000))
	sendJSON(t, c, `{"type":"audio_file","data":"`+pcm+`"}`)
	mustReadType(t, c, typeProcessing)
	mustReadType(t, c, typeFinal)
}

func TestHandler_StopWithoutAudioYieldsSentinel(t *testing.T) {
	c := dialTestServer(t, mock.New(), "ffmpeg")
	mustReadType(t, c, typeConnected)

	sendJSON(t, c, `{"type":"stop"}`)
	final := mustReadType(t, c, typeFinal)
	if final.Text != diarize.NoSpeechText {
		t.Errorf("expected no-speech sentinel, got %q", final.Text)
	}
}

func TestHandler_MalformedControlKeepsConnection(t *testing.T) {
	c := dialTestServer(t, mock.New(), "ffmpeg")
	mustReadType(t, c, typeConnected)

	sendJSON(t, c, `{broken json`)
	mustReadType(t, c, typeError)

	sendJSON(t, c, `{"type":"stop"}`)
	mustReadType(t, c, typeFinal)
}
