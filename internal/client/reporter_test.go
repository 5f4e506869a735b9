package client

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/ensembleeval/internal/snapshot"
	"github.com/vk/ensembleeval/internal/state"
	"github.com/vk/ensembleeval/internal/testutil"
	"github.com/vk/ensembleeval/internal/wire"
)

func TestEventReporter(t *testing.T) {
	r := testutil.NewReceiver(t)
	c, err := New(fastConfig(r.URL()))
	require.NoError(t, err)

	rep := NewEventReporter(c, 4)
	ctx := context.Background()
	require.NoError(t, rep.Report(ctx, 2, &snapshot.RealizationDiff{Status: snapshot.Ptr(state.Running)}))
	require.NoError(t, rep.ReportFull(ctx, 2, &snapshot.Realization{Status: state.Finished, Active: true}))
	require.NoError(t, rep.Close(ctx))
	waitDone(t, r)

	frames := r.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, "stop", frames[2])

	first, err := wire.JSON{}.Decode([]byte(frames[0]))
	require.NoError(t, err)
	assert.Equal(t, wire.TypePartial, first.Type)
	assert.Equal(t, 4, first.Iter)
	assert.Equal(t, "2", first.Iens)
	assert.Equal(t, state.Running, *first.Partial.Status)

	second, err := wire.JSON{}.Decode([]byte(frames[1]))
	require.NoError(t, err)
	assert.Equal(t, wire.TypeFull, second.Type)
	assert.Equal(t, state.Finished, second.Full.Status)
}

func TestEventReporter_CloseHonorsContext(t *testing.T) {
	transport := &refusingTransport{}
	c, err := New(DefaultConfig("ws://localhost:7777"), WithTransport(transport))
	require.NoError(t, err)
	rep := NewEventReporter(c, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err = rep.Close(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), time.Second)
	assert.Zero(t, transport.dials, "no stop is attempted once ctx is done")
	assert.ErrorIs(t, c.Send(context.Background(), []byte("late")), ErrClosed)
}
