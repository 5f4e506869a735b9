package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zishang520/socket.io/v2/socket"
)

// newSocketIOServer starts a socket.io server recording the payload of every
// text message event, in arrival order.
func newSocketIOServer(t *testing.T) (string, <-chan string) {
	t.Helper()
	received := make(chan string, 16)

	io := socket.NewServer(nil, nil)
	require.NoError(t, io.On("connection", func(clients ...any) {
		conn := clients[0].(*socket.Socket)
		_ = conn.On(MessageEvent, func(args ...any) {
			if len(args) == 0 {
				return
			}
			if msg, ok := args[0].(string); ok {
				received <- msg
			}
		})
	}))

	ts := httptest.NewServer(io.ServeHandler(nil))
	t.Cleanup(func() {
		io.Close(nil)
		ts.Close()
	})
	return ts.URL, received
}

func socketIOConfig(url string) Config {
	cfg := fastConfig(url)
	cfg.Transport = TransportSocketIO
	return cfg
}

func TestSocketIOTransport_DeliversInOrder(t *testing.T) {
	url, received := newSocketIOServer(t)
	c, err := New(socketIOConfig(url))
	require.NoError(t, err)
	defer c.Close()

	msgs := []string{"test_1", "test_2", "test_3", "stop"}
	sendAll(t, c, msgs...)

	var got []string
	timeout := time.After(5 * time.Second)
	for len(got) < len(msgs) {
		select {
		case msg := <-received:
			got = append(got, msg)
		case <-timeout:
			t.Fatalf("received %v, want %v", got, msgs)
		}
	}
	assert.Equal(t, msgs, got)
}

func TestSocketIOTransport_RefusedDialIsDeliveryError(t *testing.T) {
	url := "http" + strings.TrimPrefix(closedPortURL(t), "ws")
	cfg := socketIOConfig(url)
	cfg.MaxRetries = 1
	cfg.DialTimeout = 2 * time.Second

	c, err := New(cfg)
	require.NoError(t, err)
	defer c.Close()

	err = c.Send(context.Background(), []byte("hei"))
	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, 2, delivery.Attempts)
	assert.Equal(t, url, delivery.URL)
}
