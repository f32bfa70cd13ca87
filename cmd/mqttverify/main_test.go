package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// freePort returns a local port with nothing listening on it.
func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()
	return port
}

// writeConfig writes a YAML config into a temp dir and points MQTTVERIFY_CONFIG at it.
func writeConfig(t *testing.T, content string) {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "test-config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	t.Setenv(configEnvVar, configPath)
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv(configEnvVar, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading config") {
		t.Errorf("run() error = %v, want loading config error", err)
	}
}

// TestRun_ValidationFailure verifies config validation errors stop startup.
func TestRun_ValidationFailure(t *testing.T) {
	writeConfig(t, `
mqtt:
  broker:
    host: ""
verify:
  cache_ttl: 0
`)

	err := run(context.Background())
	if err == nil {
		t.Fatal("run() should fail validation")
	}
	for _, want := range []string{"mqtt.broker.host", "verify.cache_ttl"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("run() error = %v, want mention of %s", err, want)
		}
	}
}

// TestRun_PortInUse verifies a bind failure is returned rather than logged.
func TestRun_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen() error = %v", err)
	}
	defer ln.Close()

	writeConfig(t, fmt.Sprintf(`
api:
  host: "127.0.0.1"
  port: %d
logging:
  level: error
  format: text
  output: stderr
`, ln.Addr().(*net.TCPAddr).Port))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = run(ctx)
	if err == nil || !strings.Contains(err.Error(), "starting API server") {
		t.Errorf("run() error = %v, want starting API server error", err)
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv(configEnvVar, "")

	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	customPath := "/custom/path/config.yaml"
	t.Setenv(configEnvVar, customPath)

	if got := getConfigPath(); got != customPath {
		t.Errorf("getConfigPath() = %q, want %q", got, customPath)
	}
}

// TestRun_SuccessfulStartupAndShutdown starts the service with history
// enabled, checks the API answers, then cancels and expects a clean exit.
// No broker is needed: probe connections are only opened per verification.
func TestRun_SuccessfulStartupAndShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "data", "verify.db")
	port := freePort(t)

	writeConfig(t, fmt.Sprintf(`
mqtt:
  broker:
    host: "127.0.0.1"
    port: 19999
  connect_timeout: 1

verify:
  default_timeout_ms: 500
  max_timeout_ms: 1000
  cache_ttl: 60

database:
  enabled: true
  path: %q
  wal_mode: true
  busy_timeout: 5
  retention_days: 7

influxdb:
  enabled: false

logging:
  level: error
  format: text
  output: stderr

api:
  host: "127.0.0.1"
  port: %d
`, dbPath, port))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx)
	}()

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/health", port)
	var healthy bool
	for deadline := time.Now().Add(5 * time.Second); time.Now().Before(deadline); {
		resp, err := http.Get(healthURL) //nolint:noctx // test helper
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				healthy = true
				break
			}
		}
		select {
		case err := <-errCh:
			t.Fatalf("run() exited early: %v", err)
		case <-time.After(50 * time.Millisecond):
		}
	}
	if !healthy {
		t.Fatal("API never reported healthy")
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database file not created: %v", err)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("run() error = %v, want nil on clean shutdown", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancellation")
	}
}

// TestRun_ContextCancelledBeforeStartup verifies an already-cancelled
// context still shuts down cleanly.
func TestRun_ContextCancelledBeforeStartup(t *testing.T) {
	writeConfig(t, fmt.Sprintf(`
database:
  enabled: false
logging:
  level: error
  format: text
  output: stderr
api:
  host: "127.0.0.1"
  port: %d
`, freePort(t)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := run(ctx); err != nil {
		t.Errorf("run() error = %v, want nil", err)
	}
}
