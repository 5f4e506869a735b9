package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/vk/ensembleeval/internal/aggregator"
	"github.com/vk/ensembleeval/internal/app"
	"github.com/vk/ensembleeval/internal/dispatch"
	"github.com/vk/ensembleeval/internal/entity"
	"github.com/vk/ensembleeval/internal/nodeid"
	"github.com/vk/ensembleeval/internal/snapshot"
	"github.com/vk/ensembleeval/internal/state"
	"github.com/vk/ensembleeval/internal/testutil"
)

func writeManifest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	src := fmt.Sprintf(`
ensemble {
  size     = 2
  run_path = "%s/real-${iens}"
  stage "forward_model" {
    step {
      job "simulate" { executable = "/bin/true" }
    }
  }
}
`, filepath.ToSlash(dir))
	path := filepath.Join(dir, "ensemble.hcl")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func runner(fail bool) app.Option {
	return app.WithRunner(dispatch.JobRunnerFunc(func(context.Context, *entity.Job, string) error {
		if fail {
			return errors.New("boom")
		}
		return nil
	}))
}

func TestExecute_Run(t *testing.T) {
	manifest := writeManifest(t)
	out := &bytes.Buffer{}

	err := Execute(context.Background(), []string{"run", manifest, "--output", "yaml", "--log-level", "warn", "--base-timeout", "10ms"}, out, runner(false))
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "iteration 0: 2 of 2 realizations succeeded")

	yamlStart := strings.Index(text, "reals:")
	require.GreaterOrEqual(t, yamlStart, 0, "output: %s", text)
	var doc struct {
		Reals map[string]struct {
			Status string `yaml:"status"`
		} `yaml:"reals"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(text[yamlStart:]), &doc))
	require.Len(t, doc.Reals, 2)
	assert.Equal(t, "Finished", doc.Reals["0"].Status)
}

func TestExecute_RunFailures(t *testing.T) {
	manifest := writeManifest(t)
	out := &bytes.Buffer{}

	err := Execute(context.Background(), []string{"run", "--manifest", manifest, "--disable-monitoring", "--log-level", "error"}, out, runner(true))

	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, ExitTooFewReals, exitErr.Code)
	assert.Contains(t, out.String(), "0 of 2 realizations succeeded")
	assert.Contains(t, out.String(), "failed: 0-1")
}

func TestExecute_UsageErrors(t *testing.T) {
	manifest := writeManifest(t)
	testCases := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{name: "missing manifest", args: []string{"run"}, wantMsg: "ManifestPath is a required"},
		{name: "bad log level", args: []string{"run", manifest, "--log-level", "loud"}, wantMsg: "invalid log level"},
		{name: "bad output", args: []string{"run", manifest, "--output", "xml"}, wantMsg: "invalid output"},
		{name: "bad transport", args: []string{"run", manifest, "--transport", "carrier-pigeon"}, wantMsg: "unknown transport"},
		{name: "socketio needs report url", args: []string{"run", manifest, "--transport", "socketio"}, wantMsg: "only accepts websocket"},
		{name: "too many args", args: []string{"run", manifest, "extra"}, wantMsg: "accepts at most 1 arg"},
		{name: "snapshot without url", args: []string{"snapshot"}, wantMsg: "--url is required"},
		{name: "unknown flag", args: []string{"serve", "--bogus"}, wantMsg: "unknown flag"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := Execute(context.Background(), tc.args, &bytes.Buffer{})
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Contains(t, exitErr.Message, tc.wantMsg)
			if tc.name != "too many args" {
				assert.Equal(t, ExitUsage, exitErr.Code)
			}
		})
	}
}

func TestExecute_Snapshot(t *testing.T) {
	reg := aggregator.NewRegistry(testutil.Ensemble(t, 2, 1))
	_, err := reg.Store(context.Background(), 0)
	require.NoError(t, err)
	ts := httptest.NewServer(aggregator.NewServer(reg).Handler())
	t.Cleanup(ts.Close)

	t.Run("json", func(t *testing.T) {
		out := &bytes.Buffer{}
		require.NoError(t, Execute(context.Background(), []string{"snapshot", "--url", ts.URL}, out))

		var snap snapshot.Snapshot
		require.NoError(t, json.Unmarshal(out.Bytes(), &snap))
		assert.Len(t, snap.Reals, 2)
	})

	t.Run("yaml", func(t *testing.T) {
		out := &bytes.Buffer{}
		require.NoError(t, Execute(context.Background(), []string{"snapshot", "--url", ts.URL, "-o", "yaml"}, out))
		assert.Contains(t, out.String(), "reals:")
		assert.Contains(t, out.String(), "status: Unknown")
	})

	t.Run("missing iteration", func(t *testing.T) {
		err := Execute(context.Background(), []string{"snapshot", "--url", ts.URL, "--iter", "3", "--timeout", "2s"}, &bytes.Buffer{})
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, ExitFailure, exitErr.Code)
		assert.Contains(t, exitErr.Message, "404")
	})
}

func TestExecute_SnapshotWatch(t *testing.T) {
	for _, format := range []string{"json", "yaml"} {
		t.Run(format, func(t *testing.T) {
			reg := aggregator.NewRegistry(testutil.Ensemble(t, 2, 1))
			store, err := reg.Store(context.Background(), 0)
			require.NoError(t, err)
			ts := httptest.NewServer(aggregator.NewServer(reg).Handler())
			t.Cleanup(ts.Close)

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			out := &testutil.SafeBuffer{}
			errCh := make(chan error, 1)
			go func() {
				errCh <- Execute(ctx, []string{"snapshot", "--url", ts.URL, "--watch", "-o", format}, out)
			}()

			require.Eventually(t, func() bool {
				return strings.Contains(out.String(), "Unknown")
			}, 5*time.Second, 10*time.Millisecond)

			diff := snapshot.NewPartial().SetStatus(nodeid.Job(1, 0, 0, 0), state.Running).Reals["1"]
			require.NoError(t, store.ApplyPartial(ctx, 1, diff))
			require.Eventually(t, func() bool {
				return strings.Contains(out.String(), "Running")
			}, 5*time.Second, 10*time.Millisecond)

			cancel()
			select {
			case err := <-errCh:
				require.NoError(t, err)
			case <-time.After(5 * time.Second):
				t.Fatal("snapshot --watch did not stop on cancel")
			}

			if format == "json" {
				lines := strings.Split(strings.TrimSpace(out.String()), "\n")
				require.Len(t, lines, 2)
				var ev aggregator.WatchEvent
				require.NoError(t, json.Unmarshal([]byte(lines[1]), &ev))
				require.NotNil(t, ev.Partial)
				assert.Equal(t, []nodeid.Address{nodeid.Job(1, 0, 0, 0)}, ev.Partial.Addresses())
			}
		})
	}
}

func TestExecute_ServeStopsOnCancel(t *testing.T) {
	manifest := writeManifest(t)
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- Execute(ctx, []string{"serve", manifest, "--aggregator-addr", "127.0.0.1:0", "--log-level", "error"}, &testutil.SafeBuffer{})
	}()
	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestMaskOf(t *testing.T) {
	assert.Equal(t, []bool{false, true, false, true}, maskOf([]int{3, 1}))
	assert.Empty(t, maskOf(nil))
}
