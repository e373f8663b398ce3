package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment variables that override file config.
// A double underscore separates nesting levels: CAMGW_CAMERA__BASE_URL -> camera.base_url.
const EnvPrefix = "CAMGW_"

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Camera    CameraConfig    `koanf:"camera"`
	Video     VideoConfig     `koanf:"video"`
	Storage   StorageConfig   `koanf:"storage"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

type ServerConfig struct {
	Port        int    `koanf:"port"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`
}

type LogConfig struct {
	Debug  bool   `koanf:"debug"`
	Format string `koanf:"format"` // json, text
}

// CameraConfig configures the PTZ controller the camera pipeline talks to.
type CameraConfig struct {
	BaseURL  string `koanf:"base_url"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	// RateLimit is the number of control requests allowed per client IP per minute; 0 disables it.
	RateLimit int `koanf:"rate_limit"`
}

// VideoConfig configures frame assembly.
type VideoConfig struct {
	FFmpegPath string `koanf:"ffmpeg_path"`
	FrameRate  int    `koanf:"frame_rate"`
	Codec      string `koanf:"codec"`
	ScratchDir string `koanf:"scratch_dir"` // empty uses os.TempDir()
}

type StorageConfig struct {
	Type   string       `koanf:"type"` // sqlite, memory
	SQLite SQLiteConfig `koanf:"sqlite"`
}

type SQLiteConfig struct {
	Path string `koanf:"path"`
}

type TelemetryConfig struct {
	Enabled     bool   `koanf:"enabled"`
	ServiceName string `koanf:"service_name"`
}

// defaults are applied for keys missing from both the file and the environment.
var defaults = map[string]any{
	"server.port":            8080,
	"log.format":             "json",
	"camera.base_url":        "http://127.0.0.1:8081",
	"camera.rate_limit":      30,
	"video.ffmpeg_path":      "ffmpeg",
	"video.frame_rate":       10,
	"video.codec":            "libx264",
	"storage.type":           "sqlite",
	"storage.sqlite.path":    "./data/frames.db",
	"telemetry.service_name": "camera-gateway",
}

// Load reads DefaultPath and the environment.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads the YAML file at path (a missing file is not an error),
// applies environment overrides and defaults, and validates the result.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	// Try to load from the config file first
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// File not found is OK, we'll use env vars
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	// Load environment variables (can override file config)
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Default values
	for key, value := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, value); err != nil {
				return nil, fmt.Errorf("set default %s: %w", key, err)
			}
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", c.Server.Port)
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return errors.New("server.tls_cert_file and server.tls_key_file must be set together")
	}

	u, err := url.Parse(c.Camera.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid camera.base_url: %q", c.Camera.BaseURL)
	}
	if c.Camera.RateLimit < 0 {
		return fmt.Errorf("invalid camera.rate_limit: %d", c.Camera.RateLimit)
	}

	if c.Video.FrameRate < 1 || c.Video.FrameRate > 120 {
		return fmt.Errorf("invalid video.frame_rate: %d (must be 1-120)", c.Video.FrameRate)
	}
	if c.Video.FFmpegPath == "" {
		return errors.New("video.ffmpeg_path is required")
	}

	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return errors.New("storage.sqlite.path is required for sqlite storage")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid storage.type %q (must be 'sqlite' or 'memory')", c.Storage.Type)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log.format %q (must be 'json' or 'text')", c.Log.Format)
	}

	return nil
}
