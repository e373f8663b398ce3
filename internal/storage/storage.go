// Package storage defines the frame store consumed by the video pipeline.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrInvalidFrame is returned when a frame is missing its camera or data.
var ErrInvalidFrame = errors.New("storage: frame requires camera id and data")

// Frame is one captured JPEG image.
type Frame struct {
	ID         string
	CameraID   string
	CapturedAt time.Time
	Data       []byte
}

// FrameStore persists frames and selects them by camera and time range.
// Ranges are half-open: from is inclusive, to is exclusive.
type FrameStore interface {
	// InsertFrame stores f, assigning an ID when f.ID is empty.
	InsertFrame(ctx context.Context, f *Frame) error

	// CountFrames returns the number of frames for cameraID in [from, to).
	CountFrames(ctx context.Context, cameraID string, from, to time.Time) (int, error)

	// OpenFrames returns a cursor over the frames for cameraID in [from, to),
	// ordered by capture time ascending.
	OpenFrames(ctx context.Context, cameraID string, from, to time.Time) (FrameCursor, error)

	Close() error
}

// FrameCursor iterates over a frame selection. It must be closed.
type FrameCursor interface {
	// Next advances to the next frame, returning false when exhausted or on error.
	Next() bool
	// Frame returns the current frame.
	Frame() Frame
	// Err returns the error that stopped iteration, if any.
	Err() error
	Close() error
}

// Validate checks that f can be stored.
func (f *Frame) Validate() error {
	if f.CameraID == "" || len(f.Data) == 0 {
		return ErrInvalidFrame
	}
	return nil
}
