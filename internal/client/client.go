package client

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/ensembleeval/internal/ctxlog"
	"github.com/vk/ensembleeval/internal/wire"
)

// Sleeper waits for d or until ctx ends, whichever comes first.
type Sleeper func(ctx context.Context, d time.Duration) error

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the transport built from the config.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithSleeper replaces the wait between retries.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// Client delivers frames to one aggregator URL with bounded retries.
type Client struct {
	cfg       Config
	transport Transport
	codec     wire.Codec
	sleep     Sleeper

	conn   Conn
	closed bool
}

// New creates a client. No connection is opened until Open or the first
// Send.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	codec, err := wire.CodecByName(cfg.Codec)
	if err != nil {
		return nil, err
	}

	c := &Client{cfg: cfg, codec: codec, sleep: sleepContext}
	for _, opt := range opts {
		opt(c)
	}
	if c.transport == nil {
		if c.transport, err = NewTransport(cfg); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Open connects eagerly, retrying like Send does.
func (c *Client) Open(ctx context.Context) error {
	return c.withRetries(ctx, "open", func() error {
		return c.connect(ctx)
	})
}

// Send delivers one text frame.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	return c.deliver(ctx, msg, false)
}

// SendEvent encodes m with the configured codec and delivers it.
func (c *Client) SendEvent(ctx context.Context, m wire.Message) error {
	frame, err := c.codec.Encode(m)
	if err != nil {
		return err
	}
	return c.deliver(ctx, frame, c.codec.Binary())
}

// Stop sends the stop sentinel, telling the receiver this stream is over.
func (c *Client) Stop(ctx context.Context) error {
	return c.Send(ctx, wire.Stop)
}

// Close closes the open connection, if any. It is safe to call more than
// once.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.disconnect()
}

func (c *Client) deliver(ctx context.Context, frame []byte, binary bool) error {
	return c.withRetries(ctx, "send", func() error {
		if err := c.connect(ctx); err != nil {
			return err
		}
		if err := c.conn.Send(ctx, frame, binary); err != nil {
			c.disconnect()
			return err
		}
		return nil
	})
}

// withRetries runs op once and then up to MaxRetries more times while it
// fails, waiting Backoff(k) before retry k.
func (c *Client) withRetries(ctx context.Context, what string, op func() error) error {
	if c.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s to %s interrupted: %w", what, c.cfg.URL, err)
	}
	logger := ctxlog.FromContext(ctx).With("url", c.cfg.URL, "op", what)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := c.cfg.Backoff(attempt)
			logger.Warn("Retrying after failure", "attempt", attempt, "maxRetries", c.cfg.MaxRetries, "wait", wait, "error", lastErr)
			if err := c.sleep(ctx, wait); err != nil {
				return fmt.Errorf("%s to %s interrupted: %w", what, c.cfg.URL, err)
			}
		}

		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s to %s interrupted: %w", what, c.cfg.URL, ctx.Err())
		}
		logger.Debug("Attempt failed", "attempt", attempt, "error", lastErr)
	}

	logger.Error("Giving up", "attempts", c.cfg.MaxRetries+1, "error", lastErr)
	return &DeliveryError{URL: c.cfg.URL, Attempts: c.cfg.MaxRetries + 1, Err: lastErr}
}

func (c *Client) connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}
	conn, err := c.transport.Dial(ctx, c.cfg.URL)
	if err != nil {
		return err
	}
	c.conn = conn
	return nil
}

func (c *Client) disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
