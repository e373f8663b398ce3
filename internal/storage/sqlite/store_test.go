package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tjfontaine/camera-gateway/internal/storage"
	"github.com/tjfontaine/camera-gateway/internal/storage/storagetest"
)

var memdbSeq atomic.Int64

func newMemStore(t *testing.T) *Store {
	t.Helper()
	// Use in-memory SQLite with shared cache for testing
	store, err := New(fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", memdbSeq.Add(1)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.FrameStore {
		return newMemStore(t)
	})
}

func TestSQLiteStore_PreservesFrame(t *testing.T) {
	store := newMemStore(t)
	ctx := context.Background()

	captured := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.FixedZone("CET", 3600))
	in := &storage.Frame{ID: "frame-1", CameraID: "cam1", CapturedAt: captured, Data: []byte("jpeg-bytes")}
	if err := store.InsertFrame(ctx, in); err != nil {
		t.Fatalf("InsertFrame() error = %v", err)
	}

	cur, err := store.OpenFrames(ctx, "cam1", captured, captured.Add(time.Nanosecond))
	if err != nil {
		t.Fatalf("OpenFrames() error = %v", err)
	}
	defer cur.Close()

	if !cur.Next() {
		t.Fatalf("Next() = false, Err() = %v", cur.Err())
	}
	got := cur.Frame()
	if got.ID != "frame-1" || string(got.Data) != "jpeg-bytes" {
		t.Errorf("Frame() = %+v", got)
	}
	if !got.CapturedAt.Equal(captured) {
		t.Errorf("CapturedAt = %v, want %v", got.CapturedAt, captured)
	}
	if cur.Next() {
		t.Error("expected a single frame")
	}
}

func TestSQLiteStore_FileReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.db")

	store, err := New(path)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	storagetest.Seed(t, store, "cam1", 3)
	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("New() reopen error = %v", err)
	}
	defer reopened.Close()

	n, err := reopened.CountFrames(context.Background(), "cam1", storagetest.Base, storagetest.Base.Add(time.Hour))
	if err != nil {
		t.Fatalf("CountFrames() error = %v", err)
	}
	if n != 3 {
		t.Errorf("CountFrames() = %d, want 3", n)
	}
}
