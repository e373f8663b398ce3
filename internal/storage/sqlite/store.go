package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/tjfontaine/camera-gateway/internal/storage"
)

// Store is a SQLite implementation of storage.FrameStore
type Store struct {
	db *sql.DB
}

var _ storage.FrameStore = (*Store)(nil)

// New creates a new SQLite store
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	// Capture time is split into Unix seconds and nanoseconds so every
	// time.Time round-trips and ranges compare as integer row values.
	statements := []string{
		`CREATE TABLE IF NOT EXISTS frames (
			id TEXT PRIMARY KEY,
			camera_id TEXT NOT NULL,
			captured_sec INTEGER NOT NULL,
			captured_nsec INTEGER NOT NULL,
			data BLOB NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_frames_camera_captured ON frames(camera_id, captured_sec, captured_nsec)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) InsertFrame(ctx context.Context, f *storage.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO frames (id, camera_id, captured_sec, captured_nsec, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		f.ID, f.CameraID, f.CapturedAt.Unix(), f.CapturedAt.Nanosecond(), f.Data, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert frame: %w", err)
	}
	return nil
}

// rangeClause selects the half-open capture range [from, to).
const rangeClause = `(captured_sec, captured_nsec) >= (?, ?) AND (captured_sec, captured_nsec) < (?, ?)`

func rangeArgs(cameraID string, from, to time.Time) []any {
	return []any{cameraID, from.Unix(), from.Nanosecond(), to.Unix(), to.Nanosecond()}
}

func (s *Store) CountFrames(ctx context.Context, cameraID string, from, to time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM frames WHERE camera_id = ? AND `+rangeClause,
		rangeArgs(cameraID, from, to)...,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count frames: %w", err)
	}
	return count, nil
}

func (s *Store) OpenFrames(ctx context.Context, cameraID string, from, to time.Time) (storage.FrameCursor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, camera_id, captured_sec, captured_nsec, data FROM frames
		WHERE camera_id = ? AND `+rangeClause+`
		ORDER BY captured_sec ASC, captured_nsec ASC, id ASC`,
		rangeArgs(cameraID, from, to)...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query frames: %w", err)
	}
	return &cursor{rows: rows}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

type cursor struct {
	rows  *sql.Rows
	frame storage.Frame
	err   error
}

func (c *cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}

	var (
		f         storage.Frame
		sec, nsec int64
	)
	if err := c.rows.Scan(&f.ID, &f.CameraID, &sec, &nsec, &f.Data); err != nil {
		c.err = fmt.Errorf("failed to scan frame: %w", err)
		return false
	}
	f.CapturedAt = time.Unix(sec, nsec).UTC()
	c.frame = f
	return true
}

func (c *cursor) Frame() storage.Frame {
	return c.frame
}

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *cursor) Close() error {
	return c.rows.Close()
}
