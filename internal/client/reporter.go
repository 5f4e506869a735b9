package client

import (
	"context"

	"github.com/vk/ensembleeval/internal/snapshot"
	"github.com/vk/ensembleeval/internal/wire"
)

// EventReporter publishes realization diffs of one iteration through a
// Client. Close sends the stop sentinel and closes the client.
type EventReporter struct {
	client *Client
	iter   int
}

// NewEventReporter wraps c for iteration iter.
func NewEventReporter(c *Client, iter int) *EventReporter {
	return &EventReporter{client: c, iter: iter}
}

// Report sends diff as a partial message for realization iens.
func (r *EventReporter) Report(ctx context.Context, iens int, diff *snapshot.RealizationDiff) error {
	return r.client.SendEvent(ctx, wire.PartialMessage(r.iter, iens, diff))
}

// ReportFull sends the whole state of realization iens.
func (r *EventReporter) ReportFull(ctx context.Context, iens int, full *snapshot.Realization) error {
	return r.client.SendEvent(ctx, wire.FullMessage(r.iter, iens, full))
}

// Close ends the stream and closes the connection. The stop sentinel is
// sent with ctx; a failure to deliver it is returned after the connection
// is closed.
func (r *EventReporter) Close(ctx context.Context) error {
	stopErr := r.client.Stop(ctx)
	if err := r.client.Close(); err != nil && stopErr == nil {
		return err
	}
	return stopErr
}
