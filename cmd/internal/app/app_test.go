package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newMemoryApp(t *testing.T) *App {
	t.Helper()

	cfg := LoadConfig()
	cfg.DatabaseURL = "" // force in-memory stores
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	a, err := New(cfg, log)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestNewWiresInMemoryRuntime(t *testing.T) {
	a := newMemoryApp(t)

	if a.dbEnabled {
		t.Fatal("db enabled without a database URL")
	}
	if a.ws == nil || a.auth == nil || a.communities == nil {
		t.Fatal("handlers not wired")
	}
}

func TestHealthAndReadyEndpoints(t *testing.T) {
	a := newMemoryApp(t)

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.auth, a.communities)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, resp.StatusCode)
		}
	}
}

func TestReadyzRequiresDBWhenConfigured(t *testing.T) {
	a := newMemoryApp(t)
	a.cfg.ReadinessRequireDB = true

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.auth, a.communities)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("/readyz status = %d, want 503", resp.StatusCode)
	}
}
