package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/camera-gateway/internal/config"
	"github.com/tjfontaine/camera-gateway/internal/runtime"
	"github.com/tjfontaine/camera-gateway/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// run starts the gateway and blocks until ctx is cancelled. It returns the
// process exit code after every deferred shutdown step has run.
func run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)
	configPath := fs.String("config", config.DefaultPath, "path to the YAML config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// Load .env file if it exists
	_ = godotenv.Load()

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	shutdown, err := telemetry.Setup(telemetry.Config{
		Enabled:     cfg.Telemetry.Enabled,
		ServiceName: cfg.Telemetry.ServiceName,
	}, logger)
	if err != nil {
		logger.Error("failed to initialize tracer", slog.String("error", err.Error()))
		return 1
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown tracer", slog.String("error", err.Error()))
		}
	}()

	gw, err := runtime.New(
		runtime.WithConfig(cfg),
		runtime.WithLogger(logger),
	)
	if err != nil {
		logger.Error("failed to create gateway", slog.String("error", err.Error()))
		return 1
	}

	logger.Info("camera gateway starting",
		slog.Int("port", cfg.Server.Port),
		slog.String("camera", cfg.Camera.BaseURL),
		slog.String("storage", cfg.Storage.Type),
		slog.Bool("debug", cfg.Log.Debug),
	)

	if err := gw.Run(ctx); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		return 1
	}
	return 0
}

// newLogger builds the process logger. The level is fixed at startup.
func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
