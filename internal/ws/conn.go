package ws

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"therapy-transcription-service/internal/events"
	"therapy-transcription-service/internal/models"
	"therapy-transcription-service/internal/observability/logging"
	"therapy-transcription-service/internal/observability/metrics"
	"therapy-transcription-service/internal/pipeline"
	"therapy-transcription-service/internal/service/convert"
	"therapy-transcription-service/internal/service/engine"
	"therapy-transcription-service/internal/service/stream"
)

// flushJob is one unit of transcription work for the flush worker. The
// audio snapshot is taken at enqueue time, so the read loop can keep
// accumulating into a fresh buffer while the job is in flight.
type flushJob struct {
	audio      []byte
	sourceHint string
	language   string
	mode       models.ResultMode
	kind       string // partial, final, file
	file       bool
	// audioBytes is the byte count reported in the final event,
	// captured at enqueue time since the reader keeps counting.
	audioBytes int64
}

// conn handles one websocket connection through its whole lifecycle.
// A single reader goroutine owns the buffer and the control protocol;
// a single worker goroutine drains the flush queue, so transcript
// messages leave the connection in flush order.
type conn struct {
	ws        *websocket.Conn
	session   *stream.Session
	lifecycle *stream.Lifecycle
	buffer    *stream.Buffer
	pipe      *pipeline.Pipeline
	publisher *events.Publisher
	metrics   *metrics.Metrics
	log       zerolog.Logger

	languages []string
	task      string

	// language is the current recognition hint. Written only by the
	// reader goroutine; jobs capture it at enqueue time.
	language string

	jobs       chan flushJob
	workerDone chan struct{}

	writeMu sync.Mutex

	flushSeq   int
	chunkCount int64
	audioBytes int64
	fileCount  int
}

func newConn(ws *websocket.Conn, session *stream.Session, pipe *pipeline.Pipeline, publisher *events.Publisher, opts connOptions) *conn {
	return &conn{
		ws:              ws,
		session:         session,
		lifecycle:       stream.NewLifecycle(),
		buffer:          stream.NewBuffer(opts.flushThreshold),
		pipe:            pipe,
		publisher:       publisher,
		metrics:         metrics.DefaultMetrics,
		log:             logging.WithSession(session.ID),
		languages:  opts.languages,
		task:       opts.task,
		language:   opts.defaultLanguage,
		jobs:       make(chan flushJob, opts.flushQueueDepth),
		workerDone: make(chan struct{}),
	}
}

type connOptions struct {
	flushThreshold  int
	flushQueueDepth int
	languages       []string
	defaultLanguage string
	task            string
}

// run drives the connection until the client stops or disconnects.
func (c *conn) run(ctx context.Context, maxMessageBytes int64) {
	start := time.Now()
	c.metrics.RecordConnectionStart()
	defer func() {
		c.metrics.RecordConnectionEnd(time.Since(start).Seconds())
		c.log.Info().
			Int64("chunks", c.chunkCount).
			Int64("audioBytes", c.audioBytes).
			Int("flushes", c.flushSeq).
			Int("fileSubmissions", c.fileCount).
			Dur("duration", time.Since(start)).
			Msg("Session closed")
	}()

	c.ws.SetReadLimit(maxMessageBytes)

	if err := c.send(connectedMessage(c.session.ID, c.languages, c.task)); err != nil {
		c.log.Warn().Err(err).Msg("Failed to send welcome message")
		return
	}

	go c.flushWorker(ctx)

	c.readLoop()

	// Drain the worker before tearing the connection down so queued
	// transcripts still go out on a graceful stop.
	close(c.jobs)
	<-c.workerDone
}

func (c *conn) readLoop() {
	for {
		msgType, payload, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Warn().Err(err).Msg("Connection closed unexpectedly")
			}
			c.lifecycle.Stop()
			// Best-effort final flush of audio accepted before the
			// disconnect; the result goes downstream, not to the client.
			if c.buffer.Len() > 0 {
				c.enqueue(flushJob{
					audio:      c.buffer.TakeAndClear(),
					language:   c.language,
					mode:       models.ModeFinal,
					kind:       "final",
					audioBytes: c.audioBytes,
				})
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.handleChunk(payload)
		case websocket.TextMessage:
			if stop := c.handleControl(payload); stop {
				return
			}
		default:
			// Ping/pong handled by gorilla. Anything else is ignored.
		}
	}
}

// handleChunk appends one binary audio frame and enqueues a partial
// flush when the buffer reaches its threshold.
func (c *conn) handleChunk(payload []byte) {
	if len(payload) == 0 {
		return
	}
	if err := c.lifecycle.StartStreaming(); err != nil {
		c.log.Debug().Msg("Dropping chunk after stop")
		return
	}

	c.buffer.Append(payload)
	c.chunkCount++
	c.audioBytes += int64(len(payload))
	c.metrics.RecordChunk(len(payload))

	if c.buffer.ShouldFlush() {
		c.enqueue(flushJob{
			audio:    c.buffer.TakeAndClear(),
			language: c.language,
			mode:     models.ModePartial,
			kind:     "partial",
		})
	}
}

// handleControl dispatches one JSON control frame. The return value
// reports whether the client requested a stop. Protocol failures are
// answered on the connection and never terminate it.
func (c *conn) handleControl(payload []byte) (stop bool) {
	msg, err := decodeControl(payload)
	if err != nil {
		c.sendProtocolError(err)
		return false
	}

	switch msg.Type {
	case typeSetLanguage:
		c.handleSetLanguage(msg.Language)
	case typeAudioFile:
		c.handleAudioFile(msg)
	case typeStop:
		c.handleStop()
		return true
	}
	return false
}

func (c *conn) handleSetLanguage(language string) {
	language = strings.ToLower(strings.TrimSpace(language))
	if !c.languageSupported(language) {
		c.sendProtocolError(&protocolError{
			Kind: "unsupported_language",
			Message: fmt.Sprintf("Unsupported language: %q. Supported: %s",
				language, strings.Join(c.languages, ", ")),
		})
		return
	}

	c.language = language
	c.log.Info().Str("language", language).Msg("Recognition language changed")
	if err := c.send(languageChangedMessage(language)); err != nil {
		c.log.Warn().Err(err).Msg("Failed to send language_changed")
	}
}

func (c *conn) languageSupported(language string) bool {
	for _, l := range c.languages {
		if l == language {
			return true
		}
	}
	return false
}

// handleAudioFile transcribes one complete uploaded file. The streamed
// buffer is untouched: a file submission is independent of the stream.
func (c *conn) handleAudioFile(msg controlMessage) {
	audio, err := decodeAudioData(msg.Data)
	if err != nil {
		c.sendProtocolError(err)
		return
	}

	c.fileCount++
	c.metrics.FileSubmissions.Inc()
	c.log.Info().
		Int("bytes", len(audio)).
		Str("format", msg.Format).
		Msg("Audio file submitted")

	if err := c.send(processingMessage("Transcribing audio file")); err != nil {
		c.log.Warn().Err(err).Msg("Failed to send processing message")
	}

	c.enqueue(flushJob{
		audio:      audio,
		sourceHint: msg.Format,
		language:   c.language,
		mode:       models.ModeFinal,
		kind:       "file",
		file:       true,
		audioBytes: int64(len(audio)),
	})
}

// handleStop flushes whatever remains in the buffer as the terminal
// result, then marks the lifecycle stopped.
func (c *conn) handleStop() {
	c.lifecycle.Stop()
	c.log.Info().Msg("Stop requested")

	c.enqueue(flushJob{
		audio:      c.buffer.TakeAndClear(),
		language:   c.language,
		mode:       models.ModeFinal,
		kind:       "final",
		audioBytes: c.audioBytes,
	})
}

// enqueue hands a job to the flush worker. The queue is bounded, so a
// client outpacing the engine blocks here instead of growing memory.
func (c *conn) enqueue(job flushJob) {
	c.metrics.FlushBacklog.Inc()
	c.jobs <- job
}

// flushWorker drains the queue one job at a time, preserving flush
// order on the wire. It keeps draining after a stop so audio accepted
// before the stop is not lost.
func (c *conn) flushWorker(ctx context.Context) {
	defer close(c.workerDone)
	for job := range c.jobs {
		c.metrics.FlushBacklog.Dec()
		c.runFlush(ctx, job)
	}
}

func (c *conn) runFlush(ctx context.Context, job flushJob) {
	c.flushSeq++
	flushLog := logging.WithFlush(c.session.ID, c.flushSeq, job.kind)

	if c.lifecycle.BeginFlush() == nil {
		defer c.lifecycle.EndFlush()
	}

	language := job.language
	if language == engine.Auto {
		language = ""
	}

	result, err := c.pipe.Transcribe(ctx, pipeline.Input{
		Audio:      job.audio,
		SourceHint: job.sourceHint,
		Language:   language,
		Mode:       job.mode,
	})
	if err != nil {
		flushLog.Error().Err(err).Msg("Flush failed")
		c.sendProtocolError(transcribeError(err))
		return
	}

	text := c.pipe.Format(result)
	flushLog.Info().
		Int("turns", len(result.Turns)).
		Str("language", result.Language).
		Msg("Flush complete")

	if job.mode == models.ModeFinal {
		c.deliverFinal(ctx, text, result, job)
	} else {
		c.deliverPartial(ctx, text)
	}
}

func (c *conn) deliverPartial(ctx context.Context, text string) {
	if err := c.send(partialMessage(text)); err != nil {
		c.log.Debug().Err(err).Msg("Client gone, dropping partial")
		return
	}
	event := models.TranscriptPartial{
		EventType: "session.transcript.partial",
		SessionID: c.session.ID,
		FlushSeq:  c.flushSeq,
		Text:      text,
		Timestamp: time.Now().UnixMilli(),
	}
	if err := c.publisher.PublishPartial(ctx, c.session.ID, event); err != nil {
		c.log.Warn().Err(err).Msg("Failed to publish partial transcript")
	}
}

// deliverFinal publishes the terminal event even when the client is
// already gone, so the downstream consumers still get the transcript.
func (c *conn) deliverFinal(ctx context.Context, text string, result models.TranscriptResult, job flushJob) {
	if err := c.send(finalMessage(text, result.Language, job.file)); err != nil {
		c.log.Debug().Err(err).Msg("Client gone, final goes downstream only")
	}
	event := models.TranscriptFinal{
		EventType:          "session.transcript.final",
		SessionID:          c.session.ID,
		Text:               text,
		Language:           result.Language,
		LanguageConfidence: result.LanguageConfidence,
		AudioBytes:         job.audioBytes,
		Timestamp:          time.Now().UnixMilli(),
	}
	if err := c.publisher.PublishFinal(ctx, c.session.ID, event); err != nil {
		c.log.Warn().Err(err).Msg("Failed to publish final transcript")
	}
}

// transcribeError maps pipeline failures onto client-facing protocol
// errors. The taxonomy stays coarse on purpose: clients retry or
// resubmit, they do not debug the backend.
func transcribeError(err error) *protocolError {
	var convErr *convert.Error
	if errors.As(err, &convErr) {
		return &protocolError{
			Kind:    "conversion_failed",
			Message: "Audio conversion failed: " + convErr.Reason,
		}
	}
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		return &protocolError{
			Kind:    "engine_error",
			Message: "Transcription failed, please retry",
		}
	}
	return &protocolError{
		Kind:    "internal",
		Message: "Transcription failed, please retry",
	}
}

func (c *conn) sendProtocolError(err error) {
	var perr *protocolError
	if !errors.As(err, &perr) {
		perr = &protocolError{Kind: "internal", Message: "Internal error"}
	}
	c.metrics.RecordProtocolError(perr.Kind)
	c.log.Warn().Str("kind", perr.Kind).Str("message", perr.Message).Msg("Protocol error")
	if sendErr := c.send(errorMessage(perr.Message)); sendErr != nil {
		c.log.Debug().Err(sendErr).Msg("Client gone, dropping error message")
	}
}

// send serializes one message to the client. Both the reader and the
// flush worker write, so writes are serialized here.
func (c *conn) send(msg serverMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(msg)
}
