// Package server exposes a running read-along session over HTTP and
// WebSocket. Renderer clients connect to /ws, receive a document snapshot,
// and then a live stream of token, pointer and rollback events as
// transcripts are aligned. Control operations (mark, undo, jump,
// backtrack, reset, phrase) are accepted both as WebSocket messages and as
// plain HTTP POSTs so curl works in a pinch.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/readpace/readpace/internal/align/history"
	"github.com/readpace/readpace/internal/health"
	"github.com/readpace/readpace/internal/observe"
	"github.com/readpace/readpace/internal/session"
)

// Server wires one session, its event broadcaster, and the operational
// endpoints into a single [http.Handler].
type Server struct {
	sess    *session.Session
	bcast   *Broadcaster
	log     *slog.Logger
	metrics *observe.Metrics
	healthz *health.Handler
	audio   func([]byte) error
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics sets the metrics recorder used by the HTTP middleware.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithHealth sets the health handler serving /healthz and /readyz.
// Defaults to a handler with no readiness checkers.
func WithHealth(h *health.Handler) Option {
	return func(s *Server) {
		if h != nil {
			s.healthz = h
		}
	}
}

// WithAudioSink enables POST /api/audio: each request body is handed to
// sink as one raw PCM chunk. Without a sink the route returns 404.
func WithAudioSink(sink func([]byte) error) Option {
	return func(s *Server) {
		s.audio = sink
	}
}

// New creates a Server for sess. bcast must be the same broadcaster the
// session publishes its listener events to, so WebSocket clients see the
// consequences of the control operations they send.
func New(sess *session.Session, bcast *Broadcaster, opts ...Option) *Server {
	s := &Server{
		sess:  sess,
		bcast: bcast,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = observe.DefaultMetrics()
	}
	if s.healthz == nil {
		s.healthz = health.New()
	}
	return s
}

// Handler returns the full route table wrapped in the tracing and metrics
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /api/document", s.handleDocument)
	mux.HandleFunc("GET /api/progress", s.handleProgress)
	mux.HandleFunc("POST /api/phrase", s.handlePhrase)
	mux.HandleFunc("POST /api/control", s.handleControl)

	if s.audio != nil {
		mux.HandleFunc("POST /api/audio", s.handleAudio)
	}

	mux.Handle("GET /metrics", promhttp.Handler())
	s.healthz.Register(mux)

	return observe.Middleware(s.metrics)(mux)
}

// handleWS upgrades the connection, sends a snapshot, then streams events
// until the client goes away. Incoming messages are treated as [Control]
// requests.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.log.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "server shutting down")

	ctx := r.Context()
	events, cancel := s.bcast.Subscribe()
	defer cancel()

	if err := wsjson.Write(ctx, conn, Event{Type: "snapshot", Snapshot: snapshotOf(s.sess)}); err != nil {
		return
	}

	// Reader side: control messages from the client.
	readErr := make(chan error, 1)
	go func() {
		for {
			var ctl Control
			if err := wsjson.Read(ctx, conn, &ctl); err != nil {
				readErr <- err
				return
			}
			if err := s.dispatch(ctl); err != nil {
				s.log.Warn("control rejected", "op", ctl.Op, "error", err)
				continue
			}
			s.publishProgress()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "bye")
			return
		case err := <-readErr:
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
				conn.Close(websocket.StatusNormalClosure, "bye")
			}
			return
		case buf := <-events:
			if err := conn.Write(ctx, websocket.MessageText, buf); err != nil {
				return
			}
		}
	}
}

var errUnknownControl = errors.New("unknown control op")

// dispatch applies one control operation to the session.
func (s *Server) dispatch(ctl Control) error {
	switch ctl.Op {
	case "phrase":
		s.consumePhrase(context.Background(), ctl.Text)
	case "mark":
		outcome := history.Outcome(ctl.Outcome)
		switch outcome {
		case history.OutcomeCorrect, history.OutcomeIncorrect, history.OutcomeSkipped:
			s.sess.MarkCurrent(outcome)
		default:
			return errors.New("unknown outcome " + ctl.Outcome)
		}
	case "undo":
		s.sess.UndoLast()
	case "jump":
		s.sess.JumpTo(ctl.TokenIndex)
	case "backtrack":
		s.sess.Backtrack()
	case "reset":
		s.sess.Reset()
		s.bcast.Publish(Event{Type: "snapshot", Snapshot: snapshotOf(s.sess)})
	default:
		return errUnknownControl
	}
	return nil
}

func (s *Server) consumePhrase(ctx context.Context, phrase string) {
	_, span := observe.StartSpan(ctx, "session.consume_phrase")
	defer span.End()
	s.sess.ConsumePhrase(phrase)
}

func (s *Server) publishProgress() {
	p := s.sess.Progress()
	s.bcast.Publish(Event{Type: "progress", Progress: &p})
}

func (s *Server) handleDocument(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, snapshotOf(s.sess))
}

func (s *Server) handleProgress(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sess.Progress())
}

// phraseRequest is the JSON body for POST /api/phrase.
type phraseRequest struct {
	Text string `json:"text"`
}

func (s *Server) handlePhrase(w http.ResponseWriter, r *http.Request) {
	var req phraseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	s.consumePhrase(r.Context(), req.Text)
	s.publishProgress()
	writeJSON(w, http.StatusOK, s.sess.Progress())
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var ctl Control
	if err := json.NewDecoder(r.Body).Decode(&ctl); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.dispatch(ctl); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.publishProgress()
	writeJSON(w, http.StatusOK, s.sess.Progress())
}

// maxAudioChunk caps one POST /api/audio body at 1 MiB, about 32 seconds
// of 16 kHz mono 16-bit PCM.
const maxAudioChunk = 1 << 20

func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request) {
	chunk, err := io.ReadAll(io.LimitReader(r.Body, maxAudioChunk))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(chunk) == 0 {
		http.Error(w, "empty audio chunk", http.StatusBadRequest)
		return
	}
	if err := s.audio(chunk); err != nil {
		http.Error(w, "audio rejected: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
