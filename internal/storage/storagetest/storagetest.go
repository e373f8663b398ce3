// Package storagetest holds behavior tests shared by FrameStore implementations.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/tjfontaine/camera-gateway/internal/storage"
)

// Base is the capture time of the first frame inserted by Seed.
var Base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// Seed inserts n frames for cameraID one second apart starting at Base, in
// reverse order so implementations must sort on read.
func Seed(t *testing.T, s storage.FrameStore, cameraID string, n int) {
	t.Helper()
	for i := n - 1; i >= 0; i-- {
		f := &storage.Frame{
			CameraID:   cameraID,
			CapturedAt: Base.Add(time.Duration(i) * time.Second),
			Data:       []byte{0xFF, 0xD8, byte(i)},
		}
		if err := s.InsertFrame(context.Background(), f); err != nil {
			t.Fatalf("InsertFrame() error = %v", err)
		}
		if f.ID == "" {
			t.Fatal("InsertFrame() did not assign an ID")
		}
	}
}

// Run exercises a FrameStore. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.FrameStore) {
	ctx := context.Background()

	t.Run("CountHalfOpenRange", func(t *testing.T) {
		s := newStore(t)
		Seed(t, s, "cam1", 10)
		Seed(t, s, "cam2", 3)

		tests := []struct {
			name     string
			camera   string
			from, to time.Time
			want     int
		}{
			{"all", "cam1", Base, Base.Add(10 * time.Second), 10},
			{"end exclusive", "cam1", Base, Base.Add(5 * time.Second), 5},
			{"start inclusive", "cam1", Base.Add(9 * time.Second), Base.Add(time.Hour), 1},
			{"other camera", "cam2", Base, Base.Add(time.Hour), 3},
			{"unknown camera", "cam3", Base, Base.Add(time.Hour), 0},
			{"before data", "cam1", Base.Add(-time.Hour), Base, 0},
		}
		for _, tt := range tests {
			got, err := s.CountFrames(ctx, tt.camera, tt.from, tt.to)
			if err != nil {
				t.Fatalf("%s: CountFrames() error = %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("%s: CountFrames() = %d, want %d", tt.name, got, tt.want)
			}
		}
	})

	t.Run("OpenFramesAscending", func(t *testing.T) {
		s := newStore(t)
		Seed(t, s, "cam1", 5)

		cur, err := s.OpenFrames(ctx, "cam1", Base.Add(time.Second), Base.Add(4*time.Second))
		if err != nil {
			t.Fatalf("OpenFrames() error = %v", err)
		}
		defer cur.Close()

		var got []byte
		var prev time.Time
		for cur.Next() {
			f := cur.Frame()
			if f.CameraID != "cam1" {
				t.Errorf("CameraID = %q", f.CameraID)
			}
			if !prev.IsZero() && !f.CapturedAt.After(prev) {
				t.Errorf("frames out of order: %v after %v", f.CapturedAt, prev)
			}
			prev = f.CapturedAt
			got = append(got, f.Data[2])
		}
		if err := cur.Err(); err != nil {
			t.Fatalf("cursor Err() = %v", err)
		}
		if string(got) != string([]byte{1, 2, 3}) {
			t.Errorf("frame payloads = %v, want [1 2 3]", got)
		}
	})

	t.Run("BoundsOutsideNanosecondRange", func(t *testing.T) {
		s := newStore(t)
		Seed(t, s, "cam1", 3)

		farFuture := time.Date(3000, 1, 1, 0, 0, 0, 0, time.UTC)
		for _, end := range []time.Time{time.Unix(9999999999, 0).UTC(), farFuture} {
			got, err := s.CountFrames(ctx, "cam1", Base, end)
			if err != nil {
				t.Fatalf("CountFrames(end=%v) error = %v", end, err)
			}
			if got != 3 {
				t.Errorf("CountFrames(end=%v) = %d, want 3", end, got)
			}
		}

		old := time.Date(1500, 6, 1, 0, 0, 0, 0, time.UTC)
		late := time.Date(2500, 6, 1, 0, 0, 0, 500, time.UTC)
		for i, at := range []time.Time{late, old} {
			f := &storage.Frame{CameraID: "cam-far", CapturedAt: at, Data: []byte{byte(i)}}
			if err := s.InsertFrame(ctx, f); err != nil {
				t.Fatalf("InsertFrame() error = %v", err)
			}
		}

		cur, err := s.OpenFrames(ctx, "cam-far", time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC), farFuture)
		if err != nil {
			t.Fatalf("OpenFrames() error = %v", err)
		}
		defer cur.Close()

		var got []time.Time
		for cur.Next() {
			got = append(got, cur.Frame().CapturedAt)
		}
		if err := cur.Err(); err != nil {
			t.Fatalf("cursor Err() = %v", err)
		}
		if len(got) != 2 || !got[0].Equal(old) || !got[1].Equal(late) {
			t.Errorf("capture times = %v, want [%v %v]", got, old, late)
		}
	})

	t.Run("InsertRejectsInvalid", func(t *testing.T) {
		s := newStore(t)
		err := s.InsertFrame(ctx, &storage.Frame{CameraID: "cam1", CapturedAt: Base})
		if !errors.Is(err, storage.ErrInvalidFrame) {
			t.Errorf("InsertFrame() error = %v, want ErrInvalidFrame", err)
		}
	})
}
