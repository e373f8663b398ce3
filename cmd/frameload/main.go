// Command frameload imports JPEG files from a directory into the frame store
// for one camera, using each file's modification time as its capture time.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/joho/godotenv"

	"github.com/tjfontaine/camera-gateway/internal/camera"
	"github.com/tjfontaine/camera-gateway/internal/config"
	"github.com/tjfontaine/camera-gateway/internal/storage"
	"github.com/tjfontaine/camera-gateway/internal/storage/sqlite"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the YAML config file")
	cameraID := flag.String("camera", "", "camera id the frames belong to")
	dir := flag.String("dir", "", "directory containing .jpg files")
	flag.Parse()

	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if !camera.IDPattern.MatchString(*cameraID) {
		log.Fatalf("-camera must be %s", camera.IDDescription)
	}
	if *dir == "" {
		log.Fatal("-dir is required")
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Storage.Type != "sqlite" {
		log.Fatalf("frameload needs sqlite storage, got %q", cfg.Storage.Type)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.SQLite.Path), 0o755); err != nil {
		log.Fatalf("Failed to create storage directory: %v", err)
	}

	store, err := sqlite.New(cfg.Storage.SQLite.Path)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	n, err := load(context.Background(), store, *cameraID, *dir)
	if err != nil {
		logger.Error("import failed", slog.Int("imported", n), slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("import complete",
		slog.String("camera_id", *cameraID),
		slog.Int("frames", n),
		slog.String("db", cfg.Storage.SQLite.Path),
	)
}

// load inserts every .jpg/.jpeg file in dir, oldest first.
func load(ctx context.Context, store storage.FrameStore, cameraID, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	var frames []storage.Frame
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".jpg" && ext != ".jpeg" {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return 0, err
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return 0, err
		}
		frames = append(frames, storage.Frame{CameraID: cameraID, CapturedAt: info.ModTime().UTC(), Data: data})
	}

	sort.SliceStable(frames, func(i, j int) bool {
		return frames[i].CapturedAt.Before(frames[j].CapturedAt)
	})

	for i := range frames {
		if err := store.InsertFrame(ctx, &frames[i]); err != nil {
			return i, fmt.Errorf("insert frame %d: %w", i, err)
		}
	}
	return len(frames), nil
}
