package client

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
)

// MessageEvent is the socket.io event frames are emitted as.
const MessageEvent = "message"

// SocketIOTransport emits frames as socket.io events. socket.io offers no
// per-frame acknowledgement here, so a frame counts as sent once it is
// handed to a connected socket.
type SocketIOTransport struct {
	Namespace          string
	DialTimeout        time.Duration
	InsecureSkipVerify bool
}

// Dial connects a socket.io client and waits for the connect event.
func (t *SocketIOTransport) Dial(ctx context.Context, rawURL string) (Conn, error) {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URL: %w", err)
	}

	opts := socket.DefaultOptions()
	if parsedURL.Path != "" && parsedURL.Path != "/" {
		opts.SetPath(parsedURL.Path)
	}
	if t.InsecureSkipVerify {
		opts.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}
	opts.SetTransports(types.NewSet(transports.WebSocket))

	baseURL := fmt.Sprintf("%s://%s", parsedURL.Scheme, parsedURL.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket(t.Namespace, opts)

	connectChan := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		select {
		case connectChan <- nil:
		default:
		}
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect_error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connectChan <- err:
		default:
		}
	})

	io.Connect()

	timeout := t.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-connectChan:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return &socketIOConn{io: io}, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("waiting for socket.io connection: %w", ctx.Err())
	case <-timer.C:
		io.Disconnect()
		return nil, fmt.Errorf("timed out after %s waiting for socket.io connection", timeout)
	}
}

type socketIOConn struct {
	io *socket.Socket
}

func (c *socketIOConn) Send(ctx context.Context, frame []byte, binary bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.io.Connected() {
		return errors.New("socket.io client is not connected")
	}
	if binary {
		c.io.Emit(MessageEvent, frame)
	} else {
		c.io.Emit(MessageEvent, string(frame))
	}
	return nil
}

func (c *socketIOConn) Close() error {
	c.io.Disconnect()
	return nil
}
