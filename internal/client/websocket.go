package client

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vk/ensembleeval/internal/wire"
)

// WebsocketTransport dials plain websocket connections. Every frame is
// acknowledged by the receiver before Send returns.
type WebsocketTransport struct {
	DialTimeout        time.Duration
	AckTimeout         time.Duration
	InsecureSkipVerify bool
}

// Dial opens a websocket connection to url.
func (t *WebsocketTransport) Dial(ctx context.Context, url string) (Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: t.DialTimeout}
	if t.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	dialCtx := ctx
	if t.DialTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, t.DialTimeout)
		defer cancel()
	}

	ws, resp, err := dialer.DialContext(dialCtx, url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return &websocketConn{ws: ws, ackTimeout: t.AckTimeout}, nil
}

type websocketConn struct {
	ws         *websocket.Conn
	ackTimeout time.Duration
}

func (c *websocketConn) Send(ctx context.Context, frame []byte, binary bool) error {
	// Unblock pending reads and writes when ctx ends.
	stop := context.AfterFunc(ctx, func() { c.ws.Close() })
	defer stop()

	deadline := time.Now().Add(c.ackTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	kind := websocket.TextMessage
	if binary {
		kind = websocket.BinaryMessage
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := c.ws.WriteMessage(kind, frame); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}

	if err := c.ws.SetReadDeadline(deadline); err != nil {
		return err
	}
	_, reply, err := c.ws.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("waiting for ack: %w", err)
	}
	if !wire.IsAck(reply) {
		return fmt.Errorf("unexpected reply %q instead of ack", reply)
	}
	return nil
}

func (c *websocketConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}
