// Package ws exposes the duplex transcription protocol over websocket:
// binary frames carry audio chunks in, JSON text frames carry control
// messages in and transcript results out.
package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"therapy-transcription-service/internal/config"
	"therapy-transcription-service/internal/events"
	"therapy-transcription-service/internal/observability/logging"
	"therapy-transcription-service/internal/pipeline"
	"therapy-transcription-service/internal/service/stream"
)

// Server accepts websocket connections and runs one conn per client.
type Server struct {
	cfg       *config.Config
	pipe      *pipeline.Pipeline
	publisher *events.Publisher
	registry  *stream.Registry
	upgrader  websocket.Upgrader
	httpSrv   *http.Server
	log       zerolog.Logger
}

// NewServer wires the websocket endpoint onto the shared pipeline.
func NewServer(cfg *config.Config, pipe *pipeline.Pipeline, publisher *events.Publisher, registry *stream.Registry) *Server {
	s := &Server{
		cfg:       cfg,
		pipe:      pipe,
		publisher: publisher,
		registry:  registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Origin checks belong to the gateway in front of this
			// service; clients connect from native apps as well.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		log: logging.WithComponent("ws"),
	}
	s.httpSrv = &http.Server{
		Addr:    ":" + cfg.Service.WSPort,
		Handler: s.Handler(),
	}
	return s
}

// Handler returns the routed websocket endpoint. The endpoint is
// mounted at both / and /ws so legacy clients keep working.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/", s.handleWS)
	r.Get("/ws", s.handleWS)
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Str("remoteAddr", r.RemoteAddr).Msg("Websocket upgrade failed")
		return
	}

	session := s.registry.Add(r.RemoteAddr, func() {
		// Force-close on shutdown; the read loop unblocks with an error.
		deadline := time.Now().Add(time.Second)
		sock.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		sock.Close()
	})
	defer s.registry.Remove(session.ID)
	defer sock.Close()

	s.log.Info().
		Str("sessionId", session.ID).
		Str("remoteAddr", r.RemoteAddr).
		Msg("Session connected")

	c := newConn(sock, session, s.pipe, s.publisher, connOptions{
		flushThreshold:  s.cfg.Stream.FlushThreshold,
		flushQueueDepth: s.cfg.Stream.FlushQueueDepth,
		languages:       s.cfg.Engine.Languages,
		defaultLanguage: s.cfg.Engine.DefaultLanguage,
		task:            s.cfg.Engine.Task,
	})
	c.run(r.Context(), s.cfg.Stream.MaxMessageBytes)
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info().Str("addr", s.httpSrv.Addr).Msg("Websocket server listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Fatal().Err(err).Msg("Websocket server failed")
		}
	}()
}

// Shutdown stops accepting connections and closes the listener. Live
// sessions are force-closed separately through the registry.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
