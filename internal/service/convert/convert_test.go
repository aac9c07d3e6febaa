package convert

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIsCanonical(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want bool
	}{
		{"empty", nil, true},
		{"raw pcm silence", make([]byte, 4000), true},
		{"raw pcm samples", []byte{0x12, 0x00, 0x34, 0xFF, 0x56, 0x01}, true},
		{"wav header", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), false},
		{"ogg", []byte("OggS\x00\x02"), false},
		{"flac", []byte("fLaC\x00\x00"), false},
		{"mp3 id3", []byte("ID3\x04\x00"), false},
		{"mp3 frame sync", []byte{0xFF, 0xFB, 0x90, 0x00}, false},
		{"m4a ftyp", []byte{0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'M', '4', 'A', ' '}, false},
		{"webm ebml", []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01}, false},
		{"aiff", []byte("FORM\x00\x00\x00\x00AIFF"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsCanonical(tt.data); got != tt.want {
				t.Errorf("IsCanonical() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalize_CanonicalPassthrough(t *testing.T) {
	n := New("ffmpeg", 30*time.Second)

	// A buffer of raw PCM samples must come back byte-identical and
	// without spawning the external tool.
	pcm := make([]byte, 8000)
	for i := range pcm {
		pcm[i] = byte(i * 7)
	}
	// Avoid accidental container signatures in the synthetic data.
	pcm[0] = 0x01

	out, err := n.Normalize(context.Background(), pcm, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != len(pcm) {
		t.Fatalf("expected %d bytes, got %d", len(pcm), len(out))
	}
	for i := range pcm {
		if out[i] != pcm[i] {
			t.Fatalf("byte %d differs: got %x, want %x", i, out[i], pcm[i])
		}
	}
}

func TestNormalize_EmptyInput(t *testing.T) {
	n := New("ffmpeg", 30*time.Second)

	out, err := n.Normalize(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("expected empty output, got %d bytes", len(out))
	}
}

func TestNormalize_MissingTool(t *testing.T) {
	n := New("definitely-not-ffmpeg-binary", time.Second)

	// WAV header forces the conversion path.
	_, err := n.Normalize(context.Background(), []byte("RIFF....WAVEfmt "), "wav")
	if err == nil {
		t.Fatal("expected conversion error for missing tool")
	}

	var convErr *Error
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *convert.Error, got %T", err)
	}
	if convErr.Reason == "" {
		t.Error("expected non-empty failure reason")
	}
}

func TestNew_DefaultBinary(t *testing.T) {
	n := New("", time.Second)
	if n.bin != "ffmpeg" {
		t.Errorf("expected default binary 'ffmpeg', got %s", n.bin)
	}
}
