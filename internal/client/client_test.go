package client

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/ensembleeval/internal/snapshot"
	"github.com/vk/ensembleeval/internal/state"
	"github.com/vk/ensembleeval/internal/testutil"
	"github.com/vk/ensembleeval/internal/wire"
)

var errRefused = errors.New("connection refused")

type refusingTransport struct {
	dials int
}

func (f *refusingTransport) Dial(context.Context, string) (Conn, error) {
	f.dials++
	return nil, errRefused
}

type recordingSleeper struct {
	waits []time.Duration
}

func (s *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func fastConfig(url string) Config {
	cfg := DefaultConfig(url)
	cfg.MaxRetries = 2
	cfg.TimeoutMultiplier = 2
	cfg.BaseTimeout = 10 * time.Millisecond
	cfg.DialTimeout = time.Second
	cfg.AckTimeout = 2 * time.Second
	return cfg
}

func closedPortURL(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return "ws://" + addr
}

func sendAll(t *testing.T, c *Client, msgs ...string) {
	t.Helper()
	for _, m := range msgs {
		require.NoError(t, c.Send(context.Background(), []byte(m)))
	}
}

func waitDone(t *testing.T, r *testutil.Receiver) {
	t.Helper()
	select {
	case <-r.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("receiver never saw the stop sentinel")
	}
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	transport := &refusingTransport{}
	sleeper := &recordingSleeper{}

	cfg := DefaultConfig("ws://localhost:7777")
	cfg.MaxRetries = 3
	cfg.TimeoutMultiplier = 5
	cfg.BaseTimeout = time.Second
	cfg.MaxBackoff = 0

	c, err := New(cfg, WithTransport(transport), WithSleeper(sleeper.sleep))
	require.NoError(t, err)
	defer c.Close()

	err = c.Send(context.Background(), []byte("hei"))

	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, 4, delivery.Attempts)
	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, 4, transport.dials)
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 25 * time.Second}, sleeper.waits)
}

func TestClient_ZeroRetries(t *testing.T) {
	transport := &refusingTransport{}
	sleeper := &recordingSleeper{}
	cfg := DefaultConfig("ws://localhost:7777")
	cfg.MaxRetries = 0

	c, err := New(cfg, WithTransport(transport), WithSleeper(sleeper.sleep))
	require.NoError(t, err)

	err = c.Open(context.Background())
	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, 1, transport.dials)
	assert.Empty(t, sleeper.waits)
}

func TestClient_InvalidServer(t *testing.T) {
	c, err := New(fastConfig(closedPortURL(t)))
	require.NoError(t, err)
	defer c.Close()

	err = c.Send(context.Background(), []byte("hei"))
	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, 3, delivery.Attempts)
}

func TestClient_SuccessfulSending(t *testing.T) {
	r := testutil.NewReceiver(t)
	c, err := New(fastConfig(r.URL()))
	require.NoError(t, err)
	defer c.Close()

	msgs := []string{"test_1", "test_2", "test_3", "stop"}
	sendAll(t, c, msgs...)
	waitDone(t, r)

	assert.Equal(t, msgs, r.Frames())
	assert.Equal(t, 1, r.Connections())
}

func TestClient_RetriesUntilServerStarts(t *testing.T) {
	r, url := testutil.NewDelayedReceiver(t, 300*time.Millisecond)

	cfg := fastConfig(url)
	cfg.MaxRetries = 6
	cfg.BaseTimeout = 50 * time.Millisecond
	c, err := New(cfg)
	require.NoError(t, err)
	defer c.Close()

	msgs := []string{"test_1", "test_2", "test_3", "stop"}
	sendAll(t, c, msgs...)
	waitDone(t, r)

	assert.Equal(t, msgs, testutil.Dedup(r.Frames()))
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	r := testutil.NewReceiver(t, testutil.DropAfter("a"))
	c, err := New(fastConfig(r.URL()))
	require.NoError(t, err)
	defer c.Close()

	msgs := []string{"a", "b", "c", "stop"}
	sendAll(t, c, msgs...)
	waitDone(t, r)

	assert.Equal(t, msgs, testutil.Dedup(r.Frames()))
	assert.Equal(t, 2, r.Connections())
}

func TestClient_SendEventMsgpack(t *testing.T) {
	r := testutil.NewReceiver(t)
	cfg := fastConfig(r.URL())
	cfg.Codec = "msgpack"
	c, err := New(cfg)
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	msg := wire.PartialMessage(1, 3, &snapshot.RealizationDiff{Status: snapshot.Ptr(state.Running)})
	require.NoError(t, c.SendEvent(ctx, msg))
	require.NoError(t, c.Stop(ctx))
	waitDone(t, r)

	frames := r.Frames()
	require.Len(t, frames, 2)
	got, err := wire.Msgpack{}.Decode([]byte(frames[0]))
	require.NoError(t, err)
	assert.Equal(t, msg, got)
}

func TestClient_CancelledContextStopsRetrying(t *testing.T) {
	transport := &refusingTransport{}
	c, err := New(DefaultConfig("ws://localhost:7777"), WithTransport(transport))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = c.Send(ctx, []byte("hei"))
	assert.ErrorIs(t, err, context.Canceled)
	var delivery *DeliveryError
	assert.False(t, errors.As(err, &delivery))
	assert.Zero(t, transport.dials)
}

func TestClient_CancelDuringBackoff(t *testing.T) {
	c, err := New(DefaultConfig("ws://localhost:7777"), WithTransport(&refusingTransport{}))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = c.Send(ctx, []byte("hei"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second, "the default 1s backoff must be interrupted")
}

func TestClient_CloseIsIdempotent(t *testing.T) {
	r := testutil.NewReceiver(t)
	c, err := New(fastConfig(r.URL()))
	require.NoError(t, err)

	require.NoError(t, c.Open(context.Background()))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Send(context.Background(), []byte("late")), ErrClosed)
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing url", mutate: func(c *Config) { c.URL = "" }, wantErr: "url is required"},
		{name: "wrong scheme", mutate: func(c *Config) { c.URL = "http://localhost" }, wantErr: "ws:// or wss://"},
		{name: "socketio scheme", mutate: func(c *Config) { c.Transport = TransportSocketIO; c.URL = "http://localhost:8080" }},
		{name: "unknown transport", mutate: func(c *Config) { c.Transport = "carrier-pigeon" }, wantErr: "unknown transport"},
		{name: "negative retries", mutate: func(c *Config) { c.MaxRetries = -1 }, wantErr: "max retries"},
		{name: "multiplier below one", mutate: func(c *Config) { c.TimeoutMultiplier = 0 }, wantErr: "timeout multiplier"},
		{name: "zero dial timeout", mutate: func(c *Config) { c.DialTimeout = 0 }, wantErr: "dial timeout"},
		{name: "negative max backoff", mutate: func(c *Config) { c.MaxBackoff = -time.Second }, wantErr: "max backoff"},
		{name: "uncapped backoff", mutate: func(c *Config) { c.MaxBackoff = 0 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig("ws://localhost:51313")
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestConfig_Backoff(t *testing.T) {
	cfg := DefaultConfig("ws://localhost")
	cfg.BaseTimeout = 200 * time.Millisecond
	cfg.TimeoutMultiplier = 3

	assert.Equal(t, 200*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 600*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 1800*time.Millisecond, cfg.Backoff(3))
}

func TestConfig_BackoffCap(t *testing.T) {
	cfg := DefaultConfig("ws://localhost")

	var total time.Duration
	for k := 1; k <= cfg.MaxRetries; k++ {
		wait := cfg.Backoff(k)
		assert.LessOrEqual(t, wait, cfg.MaxBackoff, "retry %d", k)
		total += wait
	}
	assert.Equal(t, 25*time.Second, total)

	cfg.MaxRetries = 1000
	assert.Equal(t, cfg.MaxBackoff, cfg.Backoff(1000))

	cfg.MaxBackoff = 0
	cfg.TimeoutMultiplier = 10
	assert.Equal(t, 100*time.Second, cfg.Backoff(3))
}

func TestClient_DefaultRetriesAreCapped(t *testing.T) {
	transport := &refusingTransport{}
	sleeper := &recordingSleeper{}

	c, err := New(DefaultConfig("ws://localhost:7777"), WithTransport(transport), WithSleeper(sleeper.sleep))
	require.NoError(t, err)

	err = c.Send(context.Background(), []byte("hei"))
	var delivery *DeliveryError
	require.ErrorAs(t, err, &delivery)
	assert.Equal(t, 6, transport.dials)
	assert.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 10 * time.Second,
	}, sleeper.waits)
}
