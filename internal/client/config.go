package client

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Transport names accepted in Config.
const (
	TransportWebsocket = "websocket"
	TransportSocketIO  = "socketio"
)

// Config holds the settings of a Client.
type Config struct {
	// URL of the aggregator. ws:// or wss:// for websocket, http:// or
	// https:// for socket.io.
	URL string
	// MaxRetries is the number of extra attempts after the first one.
	MaxRetries int
	// TimeoutMultiplier scales the wait between consecutive retries.
	TimeoutMultiplier int
	// BaseTimeout is the wait before the first retry.
	BaseTimeout time.Duration
	// MaxBackoff caps the wait between retries. Zero means no cap.
	MaxBackoff time.Duration
	// DialTimeout bounds a single connection attempt.
	DialTimeout time.Duration
	// AckTimeout bounds the wait for the receiver to acknowledge a frame.
	AckTimeout time.Duration
	// Transport is TransportWebsocket or TransportSocketIO.
	Transport string
	// Codec names the wire codec used by SendEvent.
	Codec string
	// Namespace is the socket.io namespace.
	Namespace string
	// InsecureSkipVerify disables TLS certificate checks.
	InsecureSkipVerify bool
}

// DefaultConfig returns the default settings for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		MaxRetries:        5,
		TimeoutMultiplier: 2,
		BaseTimeout:       time.Second,
		MaxBackoff:        10 * time.Second,
		DialTimeout:       10 * time.Second,
		AckTimeout:        10 * time.Second,
		Transport:         TransportWebsocket,
		Codec:             "json",
	}
}

// Validate checks the settings and returns every problem it finds.
func (c Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.URL)
	switch {
	case c.URL == "":
		errs = append(errs, errors.New("url is required"))
	case err != nil:
		errs = append(errs, fmt.Errorf("invalid url: %w", err))
	default:
		if err := checkScheme(c.Transport, u.Scheme); err != nil {
			errs = append(errs, err)
		}
	}
	if c.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("max retries must be 0 or more, got %d", c.MaxRetries))
	}
	if c.TimeoutMultiplier < 1 {
		errs = append(errs, fmt.Errorf("timeout multiplier must be at least 1, got %d", c.TimeoutMultiplier))
	}
	if c.BaseTimeout < 0 {
		errs = append(errs, fmt.Errorf("base timeout cannot be negative, got %s", c.BaseTimeout))
	}
	if c.MaxBackoff < 0 {
		errs = append(errs, fmt.Errorf("max backoff cannot be negative, got %s", c.MaxBackoff))
	}
	if c.DialTimeout <= 0 {
		errs = append(errs, fmt.Errorf("dial timeout must be positive, got %s", c.DialTimeout))
	}
	if c.AckTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ack timeout must be positive, got %s", c.AckTimeout))
	}
	return errors.Join(errs...)
}

func checkScheme(transport, scheme string) error {
	switch transport {
	case TransportWebsocket, "":
		if scheme != "ws" && scheme != "wss" {
			return fmt.Errorf("websocket transport needs a ws:// or wss:// url, got %q", scheme)
		}
	case TransportSocketIO:
		if scheme != "http" && scheme != "https" {
			return fmt.Errorf("socketio transport needs an http:// or https:// url, got %q", scheme)
		}
	default:
		return fmt.Errorf("unknown transport %q", transport)
	}
	return nil
}

// Backoff returns the wait before retry attempt, counting from 1. It never
// exceeds MaxBackoff when that is set.
func (c Config) Backoff(attempt int) time.Duration {
	wait := c.BaseTimeout
	for i := 1; i < attempt; i++ {
		if c.MaxBackoff > 0 && wait >= c.MaxBackoff {
			break
		}
		wait *= time.Duration(c.TimeoutMultiplier)
	}
	if c.MaxBackoff > 0 && wait > c.MaxBackoff {
		wait = c.MaxBackoff
	}
	return wait
}
