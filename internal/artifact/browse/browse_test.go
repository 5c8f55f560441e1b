package browse

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func writeFixtureRun(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	runDir := filepath.Join(root, "ema_cross_test", "BTCUSDT", "abc123")
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "manifest.json"), []byte(`{"run_id":"abc123"}`), 0o644); err != nil {
		t.Fatalf("WriteFile manifest: %v", err)
	}
	if err := os.WriteFile(filepath.Join(runDir, "metrics.json"), []byte(`{"total_return_pct":12.5}`), 0o644); err != nil {
		t.Fatalf("WriteFile metrics: %v", err)
	}
	return root
}

func TestServeArtifactReturnsManifest(t *testing.T) {
	root := writeFixtureRun(t)
	s := NewServer(root, DefaultConfig())

	req := httptest.NewRequest("GET", "/runs/ema_cross_test/BTCUSDT/abc123/manifest.json", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body=%s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != `{"run_id":"abc123"}` {
		t.Fatalf("body = %q", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header to be set")
	}
}

func TestServeArtifactMissingRunReturns404(t *testing.T) {
	root := writeFixtureRun(t)
	s := NewServer(root, DefaultConfig())

	req := httptest.NewRequest("GET", "/runs/ema_cross_test/BTCUSDT/doesnotexist/manifest.json", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	root := writeFixtureRun(t)
	s := NewServer(root, DefaultConfig())

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
