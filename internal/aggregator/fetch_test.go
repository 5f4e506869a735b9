package aggregator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/ensembleeval/internal/state"
)

func TestFetchSnapshot(t *testing.T) {
	_, ts := newTestServer(t, 2, 1)
	ctx := context.Background()

	t.Run("http base", func(t *testing.T) {
		snap, err := FetchSnapshot(ctx, ts.Client(), ts.URL, 0)
		require.NoError(t, err)
		require.Len(t, snap.Reals, 2)
		assert.Equal(t, state.Unknown, snap.Reals["1"].Status)
	})

	t.Run("websocket base", func(t *testing.T) {
		snap, err := FetchSnapshot(ctx, nil, wsURL(ts)+"/", 0)
		require.NoError(t, err)
		assert.Len(t, snap.Reals, 2)
	})

	t.Run("unknown iteration", func(t *testing.T) {
		_, err := FetchSnapshot(ctx, nil, ts.URL, 4)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
		assert.Contains(t, err.Error(), "no snapshot for iteration 4")
	})

	t.Run("bad scheme", func(t *testing.T) {
		_, err := FetchSnapshot(ctx, nil, "ftp://localhost", 0)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported scheme")
	})
}
