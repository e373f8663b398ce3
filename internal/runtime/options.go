package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tjfontaine/camera-gateway/internal/config"
	"github.com/tjfontaine/camera-gateway/internal/storage"
	"github.com/tjfontaine/camera-gateway/internal/storage/memory"
	"github.com/tjfontaine/camera-gateway/internal/storage/sqlite"
	"github.com/tjfontaine/camera-gateway/internal/video"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithConfig uses an already loaded configuration.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		if cfg == nil {
			return errors.New("config is nil")
		}
		g.cfg = cfg
		return nil
	}
}

// WithFileConfig loads configuration from path and the environment.
func WithFileConfig(path string) Option {
	return func(g *Gateway) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		g.cfg = cfg
		return nil
	}
}

// WithLogger sets the logger used by the server and both pipelines.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithFrameStore injects a frame store instead of opening the configured one.
// The gateway closes it in Close, which Run and Serve call on return.
func WithFrameStore(store storage.FrameStore) Option {
	return func(g *Gateway) error {
		g.store = store
		return nil
	}
}

// WithCameraHTTPClient sets the HTTP client used to reach the camera controller.
func WithCameraHTTPClient(client *http.Client) Option {
	return func(g *Gateway) error {
		g.cameraHTTP = client
		return nil
	}
}

// WithAssembler replaces the ffmpeg assembler.
func WithAssembler(a video.FrameAssembler) Option {
	return func(g *Gateway) error {
		g.assembler = a
		return nil
	}
}

// openStore opens the frame store named by cfg.
func openStore(cfg config.StorageConfig) (storage.FrameStore, error) {
	switch cfg.Type {
	case "sqlite":
		store, err := sqlite.New(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("create sqlite storage: %w", err)
		}
		return store, nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
