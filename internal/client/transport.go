package client

import (
	"context"
	"fmt"
)

// Conn is one open connection to the aggregator.
type Conn interface {
	// Send delivers one frame. It returns once the frame is taken by the
	// receiver, as far as the transport can tell.
	Send(ctx context.Context, frame []byte, binary bool) error
	Close() error
}

// Transport opens connections.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// NewTransport returns the transport named in cfg.
func NewTransport(cfg Config) (Transport, error) {
	switch cfg.Transport {
	case TransportWebsocket, "":
		return &WebsocketTransport{
			DialTimeout:        cfg.DialTimeout,
			AckTimeout:         cfg.AckTimeout,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}, nil
	case TransportSocketIO:
		return &SocketIOTransport{
			Namespace:          cfg.Namespace,
			DialTimeout:        cfg.DialTimeout,
			InsecureSkipVerify: cfg.InsecureSkipVerify,
		}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Transport)
	}
}
