package app

import (
	"os"
	"testing"

	"github.com/vk/ensembleeval/internal/testutil"
)

// SetupAppTest creates a new app instance for system testing. Logs are
// captured at debug level and printed when ENSEMBLEEVAL_TEST_LOGS=true.
func SetupAppTest(t *testing.T, cfg *Config, opts ...Option) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	testApp := NewApp(logBuffer, cfg, opts...)

	t.Cleanup(func() {
		if os.Getenv("ENSEMBLEEVAL_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
