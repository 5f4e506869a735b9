package aggregator

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vk/ensembleeval/internal/ctxlog"
	"github.com/vk/ensembleeval/internal/snapshot"
)

const (
	watchBuffer       = 256
	watchWriteTimeout = 5 * time.Second
)

// WatchEvent is one message of the /watch stream. The first event carries
// the whole snapshot. Later events carry the diff applied to one
// realization, or the whole snapshot again after a realization was
// replaced.
type WatchEvent struct {
	Iter     int                       `json:"iter"`
	Snapshot *snapshot.Snapshot        `json:"snapshot,omitempty"`
	Partial  *snapshot.PartialSnapshot `json:"partial,omitempty"`
}

// watchHandler streams the store of one iteration to a monitor. A monitor
// that falls behind misses updates; it reconnects to get a fresh snapshot.
func (s *Server) watchHandler(w http.ResponseWriter, r *http.Request) {
	iter, store, ok := s.storeFor(w, r)
	if !ok {
		return
	}
	// Subscribe first, so nothing applied after the snapshot is missed.
	updates, unsubscribe := store.Subscribe(watchBuffer)
	defer unsubscribe()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	defer func() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	}()

	ctx := r.Context()
	logger := ctxlog.FromContext(ctx).With("remote", r.RemoteAddr, "iter", iter)
	logger.Debug("Monitor connected")

	// Monitors never write; reading only notices when they leave.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(ev WatchEvent) error {
		if err := conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout)); err != nil {
			return err
		}
		return conn.WriteJSON(ev)
	}
	if err := send(WatchEvent{Iter: iter, Snapshot: store.Snapshot(ctx)}); err != nil {
		logger.Debug("Monitor write failed", "error", err)
		return
	}

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return
			}
			ev := WatchEvent{Iter: iter}
			if u.Full || u.Partial == nil {
				ev.Snapshot = store.Snapshot(ctx)
			} else {
				ev.Partial = snapshot.NewPartial().UpdateRealization(strconv.Itoa(u.Iens), *u.Partial)
			}
			if err := send(ev); err != nil {
				logger.Debug("Monitor write failed", "error", err)
				return
			}
		case <-gone:
			logger.Debug("Monitor disconnected")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Watch streams the state of iteration iter from the aggregator at baseURL,
// calling fn for every event until ctx ends, the aggregator closes the
// stream, or fn fails. Ending through ctx or a closing aggregator is not an
// error.
func Watch(ctx context.Context, baseURL string, iter int, dialTimeout time.Duration, fn func(WatchEvent) error) error {
	u, err := endpointURL(baseURL, "/watch", iter, true)
	if err != nil {
		return err
	}
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, u, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return fmt.Errorf("watching snapshot: %s", resp.Status)
		}
		return fmt.Errorf("watching snapshot: %w", err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		var ev WatchEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("reading watch event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}
