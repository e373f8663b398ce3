package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFile_Defaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Video.FrameRate != 10 {
		t.Errorf("Video.FrameRate = %v, want 10", cfg.Video.FrameRate)
	}
	if cfg.Video.FFmpegPath != "ffmpeg" {
		t.Errorf("Video.FFmpegPath = %q, want ffmpeg", cfg.Video.FFmpegPath)
	}
	if cfg.Storage.Type != "sqlite" {
		t.Errorf("Storage.Type = %q, want sqlite", cfg.Storage.Type)
	}
	if cfg.Camera.RateLimit != 30 {
		t.Errorf("Camera.RateLimit = %v, want 30", cfg.Camera.RateLimit)
	}
	if cfg.Log.Debug {
		t.Error("Log.Debug should default to false")
	}
}

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  port: 9090
log:
  debug: true
  format: text
camera:
  base_url: http://ptz.example.test
  username: admin
  rate_limit: 0
video:
  frame_rate: 25
  scratch_dir: /var/tmp/camgw
storage:
  type: memory
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %v, want 9090", cfg.Server.Port)
	}
	if !cfg.Log.Debug || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Camera.BaseURL != "http://ptz.example.test" || cfg.Camera.Username != "admin" {
		t.Errorf("Camera = %+v", cfg.Camera)
	}
	if cfg.Camera.RateLimit != 0 {
		t.Errorf("Camera.RateLimit = %v, want 0 (explicitly disabled)", cfg.Camera.RateLimit)
	}
	if cfg.Video.FrameRate != 25 || cfg.Video.ScratchDir != "/var/tmp/camgw" {
		t.Errorf("Video = %+v", cfg.Video)
	}
	if cfg.Storage.Type != "memory" {
		t.Errorf("Storage.Type = %q, want memory", cfg.Storage.Type)
	}
}

func TestLoadFile_EnvOverride(t *testing.T) {
	t.Setenv("CAMGW_SERVER__PORT", "9000")
	t.Setenv("CAMGW_CAMERA__BASE_URL", "http://10.1.2.3")
	t.Setenv("CAMGW_LOG__DEBUG", "true")

	cfg, err := LoadFile("")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %v, want 9000", cfg.Server.Port)
	}
	if cfg.Camera.BaseURL != "http://10.1.2.3" {
		t.Errorf("Camera.BaseURL = %q", cfg.Camera.BaseURL)
	}
	if !cfg.Log.Debug {
		t.Error("Log.Debug = false, want true")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:  ServerConfig{Port: 8080},
			Log:     LogConfig{Format: "json"},
			Camera:  CameraConfig{BaseURL: "http://127.0.0.1:8081"},
			Video:   VideoConfig{FFmpegPath: "ffmpeg", FrameRate: 10},
			Storage: StorageConfig{Type: "sqlite", SQLite: SQLiteConfig{Path: "frames.db"}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"port too large", func(c *Config) { c.Server.Port = 99999 }, true},
		{"tls half configured", func(c *Config) { c.Server.TLSCertFile = "cert.pem" }, true},
		{"camera url without scheme", func(c *Config) { c.Camera.BaseURL = "127.0.0.1:8081" }, true},
		{"negative rate limit", func(c *Config) { c.Camera.RateLimit = -1 }, true},
		{"frame rate zero", func(c *Config) { c.Video.FrameRate = 0 }, true},
		{"no ffmpeg", func(c *Config) { c.Video.FFmpegPath = "" }, true},
		{"unknown storage", func(c *Config) { c.Storage.Type = "mongo" }, true},
		{"sqlite without path", func(c *Config) { c.Storage.SQLite.Path = "" }, true},
		{"memory storage", func(c *Config) { c.Storage = StorageConfig{Type: "memory"} }, false},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
