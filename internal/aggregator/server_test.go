package aggregator

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/ensembleeval/internal/client"
	"github.com/vk/ensembleeval/internal/nodeid"
	"github.com/vk/ensembleeval/internal/snapshot"
	"github.com/vk/ensembleeval/internal/state"
	"github.com/vk/ensembleeval/internal/testutil"
	"github.com/vk/ensembleeval/internal/wire"
)

func newTestServer(t *testing.T, reals, jobs int) (*Server, *httptest.Server) {
	t.Helper()
	reg := NewRegistry(testutil.Ensemble(t, reals, jobs))
	_, err := reg.Store(context.Background(), 0)
	require.NoError(t, err)

	s := NewServer(reg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func newClient(t *testing.T, url, codec string) *client.Client {
	t.Helper()
	cfg := client.DefaultConfig(url)
	cfg.MaxRetries = 2
	cfg.BaseTimeout = 10 * time.Millisecond
	cfg.Codec = codec
	c, err := client.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func jobStatus(t *testing.T, s *Server, iter int, addr nodeid.Address) state.Status {
	t.Helper()
	store, ok := s.Registry().Lookup(iter)
	require.True(t, ok)
	node, err := store.Query(context.Background(), addr)
	require.NoError(t, err)
	return node.Status()
}

func TestServer_AppliesReportsAndDropsUnknown(t *testing.T) {
	s, ts := newTestServer(t, 3, 2)
	ctx := context.Background()
	c := newClient(t, wsURL(ts), "json")

	target := nodeid.Job(1, 0, 0, 0)
	require.NoError(t, c.SendEvent(ctx, wire.PartialMessage(0, 1, snapshot.NewPartial().SetStatus(target, state.Finished).Reals["1"])))

	unknown := snapshot.NewPartial().SetStatus(nodeid.Job(1, 0, 0, 9), state.Running).Reals["1"]
	require.NoError(t, c.SendEvent(ctx, wire.PartialMessage(0, 1, unknown)))

	require.NoError(t, c.SendEvent(ctx, wire.FullMessage(0, 2, &snapshot.Realization{Status: state.Running, Active: true})))
	require.NoError(t, c.Stop(ctx))

	assert.Equal(t, state.Finished, jobStatus(t, s, 0, target))
	assert.Equal(t, state.Unknown, jobStatus(t, s, 0, nodeid.Job(1, 0, 0, 1)))
	assert.Equal(t, state.Running, jobStatus(t, s, 0, nodeid.Real(2)))

	stats := s.Stats()
	assert.Equal(t, int64(4), stats.Frames)
	assert.Equal(t, int64(2), stats.Applied)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestServer_MsgpackAndIterations(t *testing.T) {
	s, ts := newTestServer(t, 2, 1)
	ctx := context.Background()

	addr := nodeid.Job(0, 0, 0, 0)
	diff := snapshot.NewPartial().SetStatus(addr, state.Running).Reals["0"]

	c := newClient(t, wsURL(ts), "msgpack")
	require.NoError(t, c.SendEvent(ctx, wire.PartialMessage(1, 0, diff)))
	require.NoError(t, c.SendEvent(ctx, wire.PartialMessage(1000000, 0, diff)))
	require.NoError(t, c.Stop(ctx))

	assert.Equal(t, []int{0}, s.Registry().Iterations(), "reports never open an iteration")
	assert.Equal(t, int64(2), s.Stats().Dropped)

	_, err := s.Registry().Store(ctx, 1)
	require.NoError(t, err)
	c = newClient(t, wsURL(ts), "msgpack")
	require.NoError(t, c.SendEvent(ctx, wire.PartialMessage(1, 0, diff)))
	require.NoError(t, c.Stop(ctx))

	assert.Equal(t, []int{0, 1}, s.Registry().Iterations())
	assert.Equal(t, state.Running, jobStatus(t, s, 1, addr))
	assert.Equal(t, state.Unknown, jobStatus(t, s, 0, addr))
}

func TestServer_Apply_UnknownIteration(t *testing.T) {
	s, _ := newTestServer(t, 1, 1)
	msg := wire.PartialMessage(3, 0, &snapshot.RealizationDiff{Status: snapshot.Ptr(state.Running)})
	assert.ErrorIs(t, s.Apply(context.Background(), msg), ErrUnknownIteration)
}

func TestServer_OversizedFrameClosesStream(t *testing.T) {
	s, ts := newTestServer(t, 1, 1)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(2*time.Second)))
	_ = conn.WriteMessage(websocket.TextMessage, make([]byte, maxFrameSize+1))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "the stream is closed instead of acknowledging")

	require.Eventually(t, func() bool { return s.Stats().Dropped == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, s.Stats().Applied)
}

func TestServer_MalformedFrameIsAcknowledged(t *testing.T) {
	s, ts := newTestServer(t, 1, 1)
	ctx := context.Background()
	c := newClient(t, wsURL(ts), "json")

	require.NoError(t, c.Send(ctx, []byte("hello")))
	require.NoError(t, c.Send(ctx, []byte(`{"type":"partial","iens":"0"}`)))
	require.NoError(t, c.Stop(ctx))

	stats := s.Stats()
	assert.Equal(t, int64(2), stats.Dropped)
	assert.Equal(t, int64(0), stats.Applied)
}

func TestServer_ConcurrentWorkers(t *testing.T) {
	const reals = 10
	s, ts := newTestServer(t, reals, 2)

	var wg sync.WaitGroup
	errs := make(chan error, reals)
	for i := 0; i < reals; i++ {
		c := newClient(t, wsURL(ts), "json")
		wg.Add(1)
		go func(iens int, c *client.Client) {
			defer wg.Done()
			ctx := context.Background()
			for job := 0; job < 2; job++ {
				for _, st := range []state.Status{state.Running, state.Finished} {
					diff := snapshot.NewPartial().SetStatus(nodeid.Job(iens, 0, 0, job), st).Reals[nodeid.Real(iens).Real]
					if err := c.SendEvent(ctx, wire.PartialMessage(0, iens, diff)); err != nil {
						errs <- err
						return
					}
				}
			}
			if err := c.Stop(ctx); err != nil {
				errs <- err
			}
		}(i, c)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	store, _ := s.Registry().Lookup(0)
	snap := store.Snapshot(context.Background())
	for key, real := range snap.Reals {
		for jk, job := range real.Stages["0"].Steps["0"].Jobs {
			assert.Equal(t, state.Finished, job.Status, "real %s job %s", key, jk)
		}
	}
	assert.Equal(t, int64(reals), s.Stats().Streams)
}

func TestServer_HTTP(t *testing.T) {
	s, ts := newTestServer(t, 2, 1)
	store, _ := s.Registry().Lookup(0)
	require.NoError(t, store.ApplyPartial(context.Background(), 1,
		snapshot.NewPartial().SetStatus(nodeid.Job(1, 0, 0, 0), state.Failed).Reals["1"]))

	get := func(path string) (int, string) {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	testCases := []struct {
		name     string
		path     string
		wantCode int
		check    func(t *testing.T, body string)
	}{
		{
			name: "health", path: "/health", wantCode: http.StatusOK,
			check: func(t *testing.T, body string) { assert.Equal(t, "OK\n", body) },
		},
		{
			name: "snapshot", path: "/snapshot?iter=0", wantCode: http.StatusOK,
			check: func(t *testing.T, body string) {
				var snap snapshot.Snapshot
				require.NoError(t, json.Unmarshal([]byte(body), &snap))
				require.Len(t, snap.Reals, 2)
				assert.Equal(t, state.Failed, snap.Reals["1"].Stages["0"].Steps["0"].Jobs["0"].Status)
			},
		},
		{
			name: "node", path: "/node?address=reals.1.stages.0.steps.0.jobs.0", wantCode: http.StatusOK,
			check: func(t *testing.T, body string) {
				var resp NodeResponse
				require.NoError(t, json.Unmarshal([]byte(body), &resp))
				assert.Equal(t, "jobs", resp.Level)
				assert.Equal(t, state.Failed, resp.Status)
			},
		},
		{
			name: "iterations", path: "/iterations", wantCode: http.StatusOK,
			check: func(t *testing.T, body string) { assert.JSONEq(t, `{"iterations":[0]}`, body) },
		},
		{name: "unknown iteration", path: "/snapshot?iter=7", wantCode: http.StatusNotFound},
		{name: "bad iteration", path: "/snapshot?iter=x", wantCode: http.StatusBadRequest},
		{name: "bad address", path: "/node?address=stages.0", wantCode: http.StatusBadRequest},
		{name: "unknown node", path: "/node?address=reals.5", wantCode: http.StatusNotFound},
		{name: "unknown path", path: "/metrics", wantCode: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			code, body := get(tc.path)
			assert.Equal(t, tc.wantCode, code, body)
			if tc.check != nil {
				tc.check(t, body)
			}
		})
	}
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	reg := NewRegistry(testutil.Ensemble(t, 1, 1))
	s := NewServer(reg)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	url := "ws://" + ln.Addr().String()
	var conn *websocket.Conn
	require.Eventually(t, func() bool {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
	defer conn.Close()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "open streams are closed on shutdown")
}
