// Package convert normalizes arbitrary input audio into the canonical
// PCM stream the transcription engine requires: 16 kHz, mono, signed
// 16-bit little-endian samples. Conversion shells out to ffmpeg with a
// bounded timeout; a fresh subprocess per call, no shared state.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"therapy-transcription-service/internal/observability/metrics"
)

// Canonical PCM parameters.
const (
	SampleRate     = 16000
	Channels       = 1
	BytesPerSample = 2
)

// Error is the ConversionFailed failure: the external tool is missing,
// timed out, or exited non-zero.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("conversion failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("conversion failed: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

// Normalizer converts encoded audio to canonical PCM via ffmpeg.
type Normalizer struct {
	bin     string
	timeout time.Duration
	metrics *metrics.Metrics
}

// New creates a Normalizer invoking the given ffmpeg binary with the
// given per-call timeout.
func New(bin string, timeout time.Duration) *Normalizer {
	if bin == "" {
		bin = "ffmpeg"
	}
	return &Normalizer{
		bin:     bin,
		timeout: timeout,
		metrics: metrics.DefaultMetrics,
	}
}

// Normalize converts raw audio bytes into canonical PCM. Input that is
// already canonical (a bare sample stream with no container signature)
// is returned unchanged. sourceHint names the container extension of
// encoded input ("m4a", "webm", ...); empty defaults to m4a, which is
// what mobile recorder uploads arrive as.
func (n *Normalizer) Normalize(ctx context.Context, raw []byte, sourceHint string) ([]byte, error) {
	if IsCanonical(raw) {
		return raw, nil
	}

	start := time.Now()
	out, err := n.convert(ctx, raw, sourceHint)
	n.metrics.RecordConversion(err, time.Since(start).Seconds())
	return out, err
}

func (n *Normalizer) convert(ctx context.Context, raw []byte, sourceHint string) ([]byte, error) {
	suffix := strings.TrimPrefix(sourceHint, ".")
	if suffix == "" {
		suffix = "m4a"
	}

	in, err := os.CreateTemp("", "transcribe-in-*."+suffix)
	if err != nil {
		return nil, &Error{Reason: "create temp input", Err: err}
	}
	defer os.Remove(in.Name())

	if _, err := in.Write(raw); err != nil {
		in.Close()
		return nil, &Error{Reason: "write temp input", Err: err}
	}
	if err := in.Close(); err != nil {
		return nil, &Error{Reason: "close temp input", Err: err}
	}

	out, err := os.CreateTemp("", "transcribe-out-*.pcm")
	if err != nil {
		return nil, &Error{Reason: "create temp output", Err: err}
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	// ffmpeg -i input -f s16le -acodec pcm_s16le -ar 16000 -ac 1 -y output
	cmd := exec.CommandContext(ctx, n.bin,
		"-i", in.Name(),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", fmt.Sprint(SampleRate),
		"-ac", fmt.Sprint(Channels),
		"-y", outPath,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &Error{Reason: fmt.Sprintf("%s timed out after %v", n.bin, n.timeout), Err: ctx.Err()}
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, &Error{Reason: fmt.Sprintf("%s not found", n.bin), Err: err}
		}
		return nil, &Error{Reason: fmt.Sprintf("%s exited: %s", n.bin, lastLine(stderr.String())), Err: err}
	}

	pcm, err := os.ReadFile(outPath)
	if err != nil {
		return nil, &Error{Reason: "read converted output", Err: err}
	}
	return pcm, nil
}

// lastLine extracts the final non-empty stderr line, which is where
// ffmpeg puts its actual error.
func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if l := strings.TrimSpace(lines[i]); l != "" {
			return l
		}
	}
	return "no output"
}
