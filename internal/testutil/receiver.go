package testutil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vk/ensembleeval/internal/wire"
)

// Receiver is a websocket endpoint that records every frame it is sent,
// acknowledging each one, until it sees the stop sentinel.
type Receiver struct {
	t        *testing.T
	server   *httptest.Server
	upgrader websocket.Upgrader

	mu          sync.Mutex
	frames      []string
	connections int
	dropAfter   string
	dropped     bool

	stopOnce sync.Once
	done     chan struct{}
}

// ReceiverOption configures a Receiver.
type ReceiverOption func(*Receiver)

// DropAfter makes the receiver cut the first connection right after it has
// acknowledged the frame msg.
func DropAfter(msg string) ReceiverOption {
	return func(r *Receiver) { r.dropAfter = msg }
}

// NewReceiver starts a receiver on a random local port. It is shut down when
// the test ends.
func NewReceiver(t *testing.T, opts ...ReceiverOption) *Receiver {
	t.Helper()
	r := newReceiver(t, opts...)
	r.server = httptest.NewServer(http.HandlerFunc(r.handle))
	t.Cleanup(r.server.Close)
	return r
}

// NewDelayedReceiver reserves a local address and starts serving on it only
// after delay, so early connection attempts are refused.
func NewDelayedReceiver(t *testing.T, delay time.Duration, opts ...ReceiverOption) (*Receiver, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserving address: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	r := newReceiver(t, opts...)
	r.server = httptest.NewUnstartedServer(http.HandlerFunc(r.handle))
	started := make(chan struct{})
	go func() {
		defer close(started)
		time.Sleep(delay)
		l, err := net.Listen("tcp", addr)
		if err != nil {
			t.Errorf("listening on %s: %v", addr, err)
			return
		}
		r.server.Listener.Close()
		r.server.Listener = l
		r.server.Start()
	}()
	t.Cleanup(func() {
		<-started
		r.server.Close()
	})
	return r, "ws://" + addr
}

func newReceiver(t *testing.T, opts ...ReceiverOption) *Receiver {
	r := &Receiver{t: t, done: make(chan struct{})}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// URL returns the websocket URL of the receiver.
func (r *Receiver) URL() string {
	return "ws" + strings.TrimPrefix(r.server.URL, "http")
}

// Frames returns every frame received so far, in arrival order.
func (r *Receiver) Frames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.frames...)
}

// Connections returns how many connections were accepted.
func (r *Receiver) Connections() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connections
}

// Done is closed once the stop sentinel has been received.
func (r *Receiver) Done() <-chan struct{} {
	return r.done
}

func (r *Receiver) handle(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	r.mu.Lock()
	r.connections++
	r.mu.Unlock()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg := string(data)

		r.mu.Lock()
		r.frames = append(r.frames, msg)
		drop := !r.dropped && r.dropAfter != "" && msg == r.dropAfter
		if drop {
			r.dropped = true
		}
		r.mu.Unlock()

		if err := conn.WriteMessage(websocket.TextMessage, wire.Ack); err != nil {
			return
		}
		if drop {
			// Close the TCP connection without a closing handshake.
			conn.NetConn().Close()
			return
		}
		if wire.IsStop(data) {
			r.stopOnce.Do(func() { close(r.done) })
			return
		}
	}
}

// Dedup collapses consecutive duplicates, which at-least-once delivery may
// produce after a reconnect.
func Dedup(frames []string) []string {
	var out []string
	for _, f := range frames {
		if len(out) > 0 && out[len(out)-1] == f {
			continue
		}
		out = append(out, f)
	}
	return out
}
