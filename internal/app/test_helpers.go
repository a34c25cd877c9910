package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/teeio-validator/internal/hcl"
	"github.com/vk/teeio-validator/internal/testutil"
)

// WriteCatalog writes each named HCL document into a fresh directory and
// returns the directory.
func WriteCatalog(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o600))
	}
	return dir
}

// SetupAppTest creates a new app instance for system testing, loading the
// catalog with the HCL loader.
func SetupAppTest(t *testing.T, cfg Config, opts ...Option) (*App, *testutil.SafeBuffer) {
	t.Helper()

	logBuffer := &testutil.SafeBuffer{}
	cfg.LogLevel = "debug"
	cfg.LogFormat = "text"
	cfg.NoColor = true
	appConfig, err := NewConfig(cfg)
	require.NoError(t, err)

	testApp, err := NewApp(logBuffer, appConfig, hcl.NewLoader(), opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		if os.Getenv("TEEIO_TEST_LOGS") == "true" {
			t.Logf("--- Full Log Output for %s ---\n%s", t.Name(), logBuffer.String())
		}
	})

	return testApp, logBuffer
}
