package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/mqtt-verify/internal/infrastructure/config"
	"github.com/nerrad567/mqtt-verify/internal/infrastructure/database"
	"github.com/nerrad567/mqtt-verify/internal/infrastructure/logging"
	"github.com/nerrad567/mqtt-verify/internal/verify"
)

// stubVerifier records calls and returns a canned outcome per device.
type stubVerifier struct {
	mu sync.Mutex

	outcomes map[string]verify.Outcome
	cached   map[string]bool
	history  []verify.Attempt
	histErr  error
	cleared  int
	size     int
	stats    verify.Stats

	calls        []string
	lastTimeout  time.Duration
	lastDetached bool
	panicOnCall  bool
}

func newStubVerifier() *stubVerifier {
	return &stubVerifier{
		outcomes: make(map[string]verify.Outcome),
		cached:   make(map[string]bool),
	}
}

func (v *stubVerifier) Verify(ctx context.Context, deviceID string, timeout time.Duration) verify.Result {
	if v.panicOnCall {
		panic("verifier exploded")
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	id := verify.Normalize(deviceID)
	v.calls = append(v.calls, id)
	v.lastTimeout = timeout
	v.lastDetached = ctx.Done() == nil

	o, ok := v.outcomes[id]
	if !ok {
		o = verify.Outcome{Kind: verify.KindNotFound, DeviceID: id, Message: "no data", Hint: verify.NotFoundHint}
	}
	return verify.Result{Outcome: o, Cached: v.cached[id]}
}

func (v *stubVerifier) Clear() int         { return v.cleared }
func (v *stubVerifier) CacheSize() int     { return v.size }
func (v *stubVerifier) Stats() verify.Stats { return v.stats }

func (v *stubVerifier) History(_ context.Context, deviceID string, _ int) ([]verify.Attempt, error) {
	if v.histErr != nil {
		return nil, v.histErr
	}
	var out []verify.Attempt
	for _, a := range v.history {
		if a.DeviceID == verify.Normalize(deviceID) {
			out = append(out, a)
		}
	}
	return out, nil
}

func testDeps(v Verifier) Deps {
	return Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 35, Idle: 5},
		},
		Verify: config.VerifyConfig{
			DefaultTimeoutMS: 8000,
			MaxTimeoutMS:     30000,
			CacheTTL:         300,
			DeviceIDPattern:  verify.DefaultDeviceIDPattern,
		},
		Logger:   logging.Discard(),
		Verifier: v,
		Version:  "test",
	}
}

// testServer creates a Server backed by a stub verifier.
func testServer(t *testing.T) (*Server, *stubVerifier) {
	t.Helper()
	stub := newStubVerifier()
	srv, err := New(testDeps(stub))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return srv, stub
}

func doRequest(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return resp
}

// ─── Construction ──────────────────────────────────────────────────

func TestNew_RequiredDeps(t *testing.T) {
	deps := testDeps(newStubVerifier())
	deps.Logger = nil
	if _, err := New(deps); err == nil {
		t.Error("New() without logger should fail")
	}

	deps = testDeps(nil)
	if _, err := New(deps); err == nil {
		t.Error("New() without verifier should fail")
	}

	deps = testDeps(newStubVerifier())
	deps.Verify.DeviceIDPattern = "^[HP"
	if _, err := New(deps); err == nil {
		t.Error("New() with invalid pattern should fail")
	}
}

// ─── Health ────────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	srv, stub := testServer(t)
	stub.size = 3

	for _, path := range []string{"/health", "/api/v1/health"} {
		t.Run(path, func(t *testing.T) {
			w := doRequest(t, srv.Handler(), http.MethodGet, path)
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			resp := decode(t, w)
			if resp["status"] != "ok" || resp["service"] != "mqtt-verify" || resp["version"] != "test" {
				t.Errorf("health = %v", resp)
			}
			if resp["cacheSize"] != float64(3) {
				t.Errorf("cacheSize = %v, want 3", resp["cacheSize"])
			}
			if _, ok := resp["checks"]; ok {
				t.Error("checks present without a database")
			}
		})
	}
}

func TestHealth_WithDatabase(t *testing.T) {
	db, err := database.Open(config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "h.db"), BusyTimeout: 1})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	defer db.Close() //nolint:errcheck // Test cleanup

	deps := testDeps(newStubVerifier())
	deps.DB = db
	srv, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	resp := decode(t, doRequest(t, srv.Handler(), http.MethodGet, "/health"))
	checks, _ := resp["checks"].(map[string]any)
	if checks["database"] != "ok" {
		t.Errorf("checks = %v, want database ok", resp["checks"])
	}

	metrics := decode(t, doRequest(t, srv.Handler(), http.MethodGet, "/api/v1/metrics"))
	if _, ok := metrics["database"]; !ok {
		t.Error("metrics missing database section")
	}
}

// ─── Middleware ────────────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	srv, _ := testServer(t)

	w := doRequest(t, srv.Handler(), http.MethodGet, "/health")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name     string
		allowed  []string
		origin   string
		wantACAO string
	}{
		{"open by default", nil, "http://localhost:5173", "http://localhost:5173"},
		{"listed origin", []string{"https://ops.example.com"}, "https://ops.example.com", "https://ops.example.com"},
		{"unlisted origin", []string{"https://ops.example.com"}, "https://evil.example.com", ""},
		{"wildcard", []string{"*"}, "https://any.example.com", "https://any.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := testDeps(newStubVerifier())
			deps.Config.CORS.AllowedOrigins = tt.allowed
			srv, err := New(deps)
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}

			req := httptest.NewRequest(http.MethodOptions, "/api/v1/verify/P240819126", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			if w.Code != http.StatusNoContent {
				t.Errorf("preflight status = %d, want 204", w.Code)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.wantACAO {
				t.Errorf("ACAO = %q, want %q", got, tt.wantACAO)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	srv, stub := testServer(t)
	stub.panicOnCall = true

	w := doRequest(t, srv.Handler(), http.MethodGet, "/api/v1/verify/P240819126")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if resp := decode(t, w); resp["code"] != ErrCodeInternal {
		t.Errorf("code = %v, want %s", resp["code"], ErrCodeInternal)
	}
}

func TestNotFoundAndMethodNotAllowed(t *testing.T) {
	srv, _ := testServer(t)

	if w := doRequest(t, srv.Handler(), http.MethodGet, "/api/v1/nonexistent"); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want 404", w.Code)
	}
	if w := doRequest(t, srv.Handler(), http.MethodPost, "/api/v1/cache"); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /cache status = %d, want 405", w.Code)
	}
}

func TestUnversionedRoutes(t *testing.T) {
	srv, stub := testServer(t)
	stub.outcomes["P240819126"] = verify.Outcome{Kind: verify.KindExists, DeviceID: "P240819126", DataLength: 3}
	stub.cleared = 2

	tests := []struct {
		name   string
		method string
		target string
		check  func(t *testing.T, resp map[string]any)
	}{
		{
			name:   "verify",
			method: http.MethodGet,
			target: "/verify/P240819126?timeout=1500",
			check: func(t *testing.T, resp map[string]any) {
				if resp["exists"] != true || resp["deviceId"] != "P240819126" {
					t.Errorf("resp = %v, want exists for P240819126", resp)
				}
			},
		},
		{
			name:   "clear cache",
			method: http.MethodDelete,
			target: "/cache",
			check: func(t *testing.T, resp map[string]any) {
				if resp["cleared"] != float64(2) {
					t.Errorf("cleared = %v, want 2", resp["cleared"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, srv.Handler(), tt.method, tt.target)
			if w.Code != http.StatusOK {
				t.Fatalf("%s %s status = %d, want 200", tt.method, tt.target, w.Code)
			}
			tt.check(t, decode(t, w))
		})
	}

	if stub.lastTimeout != 1500*time.Millisecond {
		t.Errorf("timeout passed = %v, want 1.5s", stub.lastTimeout)
	}
	if w := doRequest(t, srv.Handler(), http.MethodGet, "/verify/bogus"); w.Code != http.StatusBadRequest {
		t.Errorf("GET /verify/bogus status = %d, want 400", w.Code)
	}
}

// ─── Metrics ───────────────────────────────────────────────────────

func TestMetrics(t *testing.T) {
	srv, stub := testServer(t)
	stub.stats = verify.Stats{CacheHits: 4, CacheMisses: 2, Exists: 1, Unknown: 1}
	stub.size = 2

	w := doRequest(t, srv.Handler(), http.MethodGet, "/api/v1/metrics")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var m SystemMetrics
	if err := json.Unmarshal(w.Body.Bytes(), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Verifier != stub.stats {
		t.Errorf("Verifier = %+v, want %+v", m.Verifier, stub.stats)
	}
	if m.CacheSize != 2 || m.Version != "test" || m.Runtime.Goroutines == 0 {
		t.Errorf("metrics = %+v", m)
	}
	if m.Database != nil {
		t.Error("database metrics present without a database")
	}
}

// ─── Lifecycle ─────────────────────────────────────────────────────

func TestServer_StartAndClose(t *testing.T) {
	srv, _ := testServer(t)

	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	addr := "http://" + srv.Addr().String()

	cfg := testDeps(nil).Config
	if srv.server.ReadTimeout != cfg.ReadTimeout() ||
		srv.server.WriteTimeout != cfg.WriteTimeout() ||
		srv.server.IdleTimeout != cfg.IdleTimeout() {
		t.Errorf("server timeouts = %v/%v/%v, want %v/%v/%v",
			srv.server.ReadTimeout, srv.server.WriteTimeout, srv.server.IdleTimeout,
			cfg.ReadTimeout(), cfg.WriteTimeout(), cfg.IdleTimeout())
	}

	resp, err := http.Get(addr + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	if err := srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if _, err := http.Get(addr + "/health"); err == nil {
		t.Error("server still responding after Close()")
	}
}

func TestServer_StartPortInUse(t *testing.T) {
	first, _ := testServer(t)
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer first.Close() //nolint:errcheck // Test cleanup

	deps := testDeps(newStubVerifier())
	deps.Config.Port = first.Addr().(*net.TCPAddr).Port
	second, err := New(deps)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Close() //nolint:errcheck // Test cleanup
		t.Error("Start() on a bound port should fail")
	}
}

func TestServer_CloseBeforeStart(t *testing.T) {
	srv, _ := testServer(t)
	if err := srv.Close(); err != nil {
		t.Errorf("Close() before Start error = %v", err)
	}
}
