package runtime

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tjfontaine/camera-gateway/internal/config"
	"github.com/tjfontaine/camera-gateway/internal/storage/memory"
	"github.com/tjfontaine/camera-gateway/internal/storage/storagetest"
)

type fileAssembler struct {
	calls int
}

func (a *fileAssembler) Assemble(_ context.Context, _ string, output string) error {
	a.calls++
	return os.WriteFile(output, []byte("mp4"), 0o600)
}

func testConfig(cameraURL string) *config.Config {
	return &config.Config{
		Server:  config.ServerConfig{Port: 18080},
		Log:     config.LogConfig{Format: "json"},
		Camera:  config.CameraConfig{BaseURL: cameraURL, RateLimit: 0},
		Video:   config.VideoConfig{FFmpegPath: "ffmpeg", FrameRate: 10, Codec: "libx264"},
		Storage: config.StorageConfig{Type: "memory"},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "192.0.2.10:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGateway_New_RejectsBadOptions(t *testing.T) {
	if _, err := New(WithConfig(nil)); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := New(WithFileConfig(filepath.Join(t.TempDir(), "missing.yaml")), WithLogger(discardLogger()),
		WithFrameStore(memory.New())); err != nil {
		t.Errorf("missing config file should fall back to defaults: %v", err)
	}
}

func TestGateway_CameraControl(t *testing.T) {
	var gotQuery string
	controller := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte("OK"))
	}))
	defer controller.Close()

	gw, err := New(WithConfig(testConfig(controller.URL)), WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer gw.Close()

	rec := get(t, gw.Handler(), CameraControlPath+"?camera_id=42&action=START&direction=up&velocity=5")
	if rec.Code != http.StatusOK || rec.Body.String() != "Done!" {
		t.Fatalf("response = %d %q", rec.Code, rec.Body.String())
	}
	if want := "action=start&channel=42&code=Up&arg1=0&arg2=5&arg3=0"; gotQuery != want {
		t.Errorf("controller query = %q, want %q", gotQuery, want)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID header")
	}
}

func TestGateway_CameraRateLimit(t *testing.T) {
	controller := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer controller.Close()

	cfg := testConfig(controller.URL)
	cfg.Camera.RateLimit = 1
	gw, err := New(WithConfig(cfg), WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer gw.Close()

	target := CameraControlPath + "?camera_id=42&action=stop&direction=Up&velocity=1"
	if rec := get(t, gw.Handler(), target); rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d", rec.Code)
	}
	if rec := get(t, gw.Handler(), target); rec.Code != http.StatusTooManyRequests {
		t.Errorf("second request status = %d, want 429", rec.Code)
	}
	// The video route is not throttled.
	if rec := get(t, gw.Handler(), VideoPath); rec.Code != http.StatusBadRequest {
		t.Errorf("video status = %d, want 400", rec.Code)
	}
}

func TestGateway_Video(t *testing.T) {
	store := memory.New()
	storagetest.Seed(t, store, "cam1", 3)
	assembler := &fileAssembler{}

	cfg := testConfig("http://127.0.0.1:1")
	cfg.Video.ScratchDir = t.TempDir()
	gw, err := New(WithConfig(cfg), WithLogger(discardLogger()), WithFrameStore(store), WithAssembler(assembler))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer gw.Close()

	rec := get(t, gw.Handler(), VideoPath+"?camera_id=cam1&start=1709294400&end=1709294460")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if rec.Body.String() != "mp4" || assembler.calls != 1 {
		t.Errorf("body = %q, assembler calls = %d", rec.Body.String(), assembler.calls)
	}

	rec = get(t, gw.Handler(), VideoPath+"?camera_id=cam9&start=1709294400&end=1709294460")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "no_data") {
		t.Errorf("empty selection = %d %s", rec.Code, rec.Body.String())
	}
}

func TestGateway_SQLiteStorage(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Storage = config.StorageConfig{
		Type:   "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "data", "frames.db")},
	}

	gw, err := New(WithConfig(cfg), WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := gw.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if _, err := os.Stat(cfg.Storage.SQLite.Path); err != nil {
		t.Errorf("database file not created: %v", err)
	}
}

func TestGateway_Serve_And_Shutdown(t *testing.T) {
	gw, err := New(WithConfig(testConfig("http://127.0.0.1:1")), WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Serve(ctx, ln) }()

	var resp *http.Response
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err = http.Get("http://" + ln.Addr().String() + "/health")
		if err == nil || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
