package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tjfontaine/camera-gateway/internal/storage"
)

// Store is an in-memory implementation of storage.FrameStore
type Store struct {
	mu     sync.RWMutex
	frames map[string][]storage.Frame
}

var _ storage.FrameStore = (*Store)(nil)

// New creates a new in-memory store
func New() *Store {
	return &Store{
		frames: make(map[string][]storage.Frame),
	}
}

func (s *Store) InsertFrame(ctx context.Context, f *storage.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}

	stored := *f
	stored.CapturedAt = f.CapturedAt.UTC()
	stored.Data = append([]byte(nil), f.Data...)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames[f.CameraID] = append(s.frames[f.CameraID], stored)
	return nil
}

func (s *Store) CountFrames(ctx context.Context, cameraID string, from, to time.Time) (int, error) {
	return len(s.selectFrames(cameraID, from, to)), nil
}

func (s *Store) OpenFrames(ctx context.Context, cameraID string, from, to time.Time) (storage.FrameCursor, error) {
	return &cursor{frames: s.selectFrames(cameraID, from, to), pos: -1}, nil
}

func (s *Store) Close() error {
	return nil
}

func (s *Store) selectFrames(cameraID string, from, to time.Time) []storage.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []storage.Frame
	for _, f := range s.frames[cameraID] {
		if !f.CapturedAt.Before(from) && f.CapturedAt.Before(to) {
			result = append(result, f)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CapturedAt.Before(result[j].CapturedAt)
	})
	return result
}

type cursor struct {
	frames []storage.Frame
	pos    int
	closed bool
}

func (c *cursor) Next() bool {
	if c.closed || c.pos+1 >= len(c.frames) {
		return false
	}
	c.pos++
	return true
}

func (c *cursor) Frame() storage.Frame {
	if c.pos < 0 || c.pos >= len(c.frames) {
		return storage.Frame{}
	}
	return c.frames[c.pos]
}

func (c *cursor) Err() error { return nil }

func (c *cursor) Close() error {
	c.closed = true
	return nil
}
