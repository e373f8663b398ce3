// Package runtime wires configuration, storage, the camera and video
// pipelines and the HTTP server into a runnable Gateway.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tjfontaine/camera-gateway/internal/camera"
	"github.com/tjfontaine/camera-gateway/internal/config"
	"github.com/tjfontaine/camera-gateway/internal/server"
	"github.com/tjfontaine/camera-gateway/internal/storage"
	"github.com/tjfontaine/camera-gateway/internal/video"
)

// Routes served by the gateway.
const (
	CameraControlPath = "/api/camera/control"
	VideoPath         = "/api/video"
)

// cameraRateWindow is the window camera.rate_limit is counted over.
const cameraRateWindow = time.Minute

// Gateway owns the HTTP server and everything the pipelines depend on.
type Gateway struct {
	cfg    *config.Config
	logger *slog.Logger

	store      storage.FrameStore
	cameraHTTP *http.Client
	assembler  video.FrameAssembler

	server *server.Server
	mu     sync.Mutex
	closed bool
}

// New creates a Gateway. Without WithConfig or WithFileConfig, config.Load()
// is used.
func New(opts ...Option) (*Gateway, error) {
	g := &Gateway{
		logger: slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if g.cfg == nil {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		g.cfg = cfg
	}

	if g.store == nil {
		if g.cfg.Storage.Type == "sqlite" {
			if err := os.MkdirAll(filepath.Dir(g.cfg.Storage.SQLite.Path), 0o755); err != nil {
				return nil, fmt.Errorf("create storage directory: %w", err)
			}
		}
		store, err := openStore(g.cfg.Storage)
		if err != nil {
			return nil, err
		}
		g.store = store
	}

	if g.assembler == nil {
		g.assembler = video.NewAssembler(video.AssemblerConfig{
			FFmpegPath: g.cfg.Video.FFmpegPath,
			FrameRate:  g.cfg.Video.FrameRate,
			Codec:      g.cfg.Video.Codec,
		}, g.logger)
	}

	if err := g.buildServer(); err != nil {
		g.store.Close()
		return nil, err
	}
	return g, nil
}

func (g *Gateway) buildServer() error {
	client, err := camera.NewClient(camera.ClientConfig{
		BaseURL:  g.cfg.Camera.BaseURL,
		Username: g.cfg.Camera.Username,
		Password: g.cfg.Camera.Password,
	}, g.cameraHTTP)
	if err != nil {
		return fmt.Errorf("create camera client: %w", err)
	}

	cameraPipeline, err := camera.NewPipeline(client, g.logger)
	if err != nil {
		return fmt.Errorf("create camera pipeline: %w", err)
	}

	videoPipeline, err := video.NewPipeline(video.Config{
		Store:      g.store,
		Assembler:  g.assembler,
		ScratchDir: g.cfg.Video.ScratchDir,
		Logger:     g.logger,
	})
	if err != nil {
		return fmt.Errorf("create video pipeline: %w", err)
	}

	srv := server.New(server.Config{
		Port:        g.cfg.Server.Port,
		TLSCertFile: g.cfg.Server.TLSCertFile,
		TLSKeyFile:  g.cfg.Server.TLSKeyFile,
	}, g.logger)

	srv.Router.With(server.RateLimitByIP(g.cfg.Camera.RateLimit, cameraRateWindow)).
		Get(CameraControlPath, cameraPipeline.ServeHTTP)
	srv.Router.Get(VideoPath, videoPipeline.ServeHTTP)

	g.server = srv
	g.logger.Info("pipelines registered",
		slog.Any("camera_stages", cameraPipeline.Stages()),
		slog.Any("video_stages", videoPipeline.Stages()),
	)
	return nil
}

// Handler returns the gateway's HTTP handler.
func (g *Gateway) Handler() http.Handler {
	return g.server.Router
}

// Run serves on the configured port until ctx is cancelled, then shuts down
// and closes the frame store.
func (g *Gateway) Run(ctx context.Context) error {
	defer g.Close()
	return g.server.Start(ctx)
}

// Serve is Run on an existing listener.
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	defer g.Close()
	return g.server.Serve(ctx, ln)
}

// Close releases the frame store. It is safe to call more than once.
func (g *Gateway) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true

	if err := g.store.Close(); err != nil {
		g.logger.Error("failed to close storage", slog.String("error", err.Error()))
		return fmt.Errorf("close storage: %w", err)
	}
	g.logger.Info("gateway shutdown complete")
	return nil
}
