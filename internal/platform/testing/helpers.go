// Package testing holds fixtures shared by package tests.
package testing

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"poap-og-server/internal/platform/config"
)

// baseConfig keeps every side effect inside the test's temp dir and out of the network.
const baseConfig = `
log:
  log_level: "ERROR"
  log_dir: %q
  log_file: "test.log"
assets:
  dir: %q
upload:
  driver: cloudflare
  workers: 1
  queue_size: 2
refresh:
  workers: 1
  buffer_size: 4
metrics:
  enabled: false
`

// ConfigLoader writes a config file under t.TempDir and returns a loader pinned to it.
// extra is appended verbatim and must not repeat a section of baseConfig.
func ConfigLoader(t *testing.T, extra string) *config.Loader {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := fmt.Sprintf(baseConfig, filepath.Join(dir, "logs"), filepath.Join(dir, "assets")) + extra
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}

	return config.NewLoader().
		WithDotEnv(false).
		WithPath(path).
		WithEnv(func(string) (string, bool) { return "", false })
}

// StartRedis runs an in-process redis that is closed when the test ends.
func StartRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}
