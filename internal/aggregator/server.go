package aggregator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vk/ensembleeval/internal/ctxlog"
	"github.com/vk/ensembleeval/internal/snapshot"
	"github.com/vk/ensembleeval/internal/wire"
)

const (
	shutdownTimeout = 5 * time.Second
	// maxFrameSize bounds one worker frame. A realization diff is a few
	// kilobytes at most.
	maxFrameSize = 4 << 20
)

// Stats counts frames seen by a Server.
type Stats struct {
	Frames  int64
	Applied int64
	Dropped int64
	Streams int64
}

// Server accepts worker streams and serves the snapshot API.
type Server struct {
	registry *Registry
	upgrader websocket.Upgrader
	mux      *http.ServeMux

	frames  atomic.Int64
	applied atomic.Int64
	dropped atomic.Int64
	streams atomic.Int64
}

// NewServer creates a server applying reports to the stores of reg.
func NewServer(reg *Registry) *Server {
	s := &Server{
		registry: reg,
		upgrader: websocket.Upgrader{
			// Workers are not browsers; there is no origin to check.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		mux: http.NewServeMux(),
	}
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.HandleFunc("/iterations", s.iterationsHandler)
	s.mux.HandleFunc("/snapshot", s.snapshotHandler)
	s.mux.HandleFunc("/node", s.nodeHandler)
	s.mux.HandleFunc("/watch", s.watchHandler)
	s.mux.HandleFunc("/", s.streamHandler)
	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Registry returns the registry the server applies reports to.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Stats returns the frame counters.
func (s *Server) Stats() Stats {
	return Stats{
		Frames:  s.frames.Load(),
		Applied: s.applied.Load(),
		Dropped: s.dropped.Load(),
		Streams: s.streams.Load(),
	}
}

// ListenAndServe listens on addr and serves until ctx ends.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx ends, then shuts down gracefully. Open
// worker streams are closed on shutdown.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	logger := ctxlog.FromContext(ctx)
	srv := &http.Server{
		Handler:     s.mux,
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("📡 Aggregator listening", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	logger.Info("📡 Shutting down aggregator...", "stats", s.Stats())
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Aggregator shutdown failed", "error", err)
		return err
	}
	<-errCh
	logger.Debug("Aggregator shut down gracefully.")
	return nil
}

// streamHandler upgrades the request and applies every frame of the stream
// until the stop sentinel or a read error.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an error status.
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	ctx := ctxlog.With(r.Context(), "remote", r.RemoteAddr)
	logger := ctxlog.FromContext(ctx)
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	s.streams.Add(1)
	logger.Debug("Worker stream opened")

	for {
		kind, data, err := conn.ReadMessage()
		if errors.Is(err, websocket.ErrReadLimit) {
			s.dropped.Add(1)
			logger.Warn("Closing worker stream, frame too large", "limit", maxFrameSize)
			return
		}
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.Debug("Worker stream broken", "error", err)
			}
			return
		}
		s.frames.Add(1)

		if kind == websocket.TextMessage && wire.IsStop(data) {
			_ = conn.WriteMessage(websocket.TextMessage, wire.Ack)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			logger.Debug("Worker stream stopped")
			return
		}

		s.handleFrame(ctx, kind == websocket.BinaryMessage, data)
		if err := conn.WriteMessage(websocket.TextMessage, wire.Ack); err != nil {
			logger.Debug("Could not acknowledge frame", "error", err)
			return
		}
	}
}

// handleFrame decodes and applies one frame. Frames that cannot be applied
// are logged and dropped; they are still acknowledged so the worker does not
// send them again.
func (s *Server) handleFrame(ctx context.Context, binary bool, data []byte) {
	logger := ctxlog.FromContext(ctx)

	msg, err := wire.DecodeFrame(binary, data)
	if err == nil {
		err = msg.Validate()
	}
	if err != nil {
		s.dropped.Add(1)
		logger.Warn("Dropping malformed frame", "error", err, "size", len(data))
		return
	}

	if err := s.Apply(ctx, msg); err != nil {
		s.dropped.Add(1)
		var unknown *snapshot.UnknownAddressError
		if errors.As(err, &unknown) {
			logger.Warn("Dropping report for unknown node", "iter", msg.Iter, "address", unknown.Address.String())
			return
		}
		logger.Warn("Dropping report", "iter", msg.Iter, "iens", msg.Iens, "error", err)
		return
	}
	s.applied.Add(1)
}

// Apply applies one validated message to the store of its iteration. Only
// iterations opened on the registry accept reports.
func (s *Server) Apply(ctx context.Context, msg wire.Message) error {
	iens, err := msg.RealizationIndex()
	if err != nil {
		return err
	}
	store, ok := s.registry.Lookup(msg.Iter)
	if !ok {
		return fmt.Errorf("%w %d", ErrUnknownIteration, msg.Iter)
	}
	switch msg.Type {
	case wire.TypePartial:
		return store.ApplyPartial(ctx, iens, msg.Partial)
	case wire.TypeFull:
		return store.ApplyFull(ctx, iens, msg.Full)
	default:
		return fmt.Errorf("%w: unknown type %q", wire.ErrInvalidMessage, msg.Type)
	}
}
