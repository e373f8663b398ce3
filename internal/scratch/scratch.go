// Package scratch manages per-request scratch directories used to stage
// intermediate artifacts, such as extracted video frames, before a single
// remote operation consumes them.
package scratch

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/tjfontaine/camera-gateway/internal/metrics"
)

// ErrNoData is returned by PadWidth when there is nothing to stage.
var ErrNoData = errors.New("scratch: no items to stage")

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Resource is a scratch directory owned by one request. It is released
// exactly once, removing the directory and everything tracked in it.
type Resource struct {
	dir string

	mu        sync.Mutex
	artifacts []string
	closers   []io.Closer

	once       sync.Once
	releaseErr error
}

// Allocate creates a new uniquely named directory under baseDir (os.TempDir
// when empty). key only seeds the name; two allocations with the same key
// never share a directory.
func Allocate(baseDir, key string) (*Resource, error) {
	if baseDir != "" {
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			return nil, fmt.Errorf("create scratch base %s: %w", baseDir, err)
		}
	}

	prefix := unsafeChars.ReplaceAllString(key, "_")
	if prefix == "" {
		prefix = "scratch"
	}

	dir, err := os.MkdirTemp(baseDir, prefix+"-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	metrics.TrackStagedResource(true)
	return &Resource{dir: dir}, nil
}

// Dir returns the directory path.
func (r *Resource) Dir() string {
	return r.dir
}

// Path returns the path of name inside the directory.
func (r *Resource) Path(name string) string {
	return filepath.Join(r.dir, name)
}

// Track records an artifact written into the directory.
func (r *Resource) Track(path string) {
	r.mu.Lock()
	r.artifacts = append(r.artifacts, path)
	r.mu.Unlock()
}

// Artifacts returns the tracked artifacts in the order they were tracked.
func (r *Resource) Artifacts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.artifacts))
	copy(out, r.artifacts)
	return out
}

// AddCloser registers c to be closed on Release, before the directory is removed.
func (r *Resource) AddCloser(c io.Closer) {
	r.mu.Lock()
	r.closers = append(r.closers, c)
	r.mu.Unlock()
}

// Release closes registered closers and removes the directory tree. Only the
// first call does any work; later calls return the first call's error.
func (r *Resource) Release() error {
	r.once.Do(func() {
		r.mu.Lock()
		closers := r.closers
		r.closers = nil
		r.mu.Unlock()

		var errs []error
		for _, c := range closers {
			if err := safeClose(c); err != nil {
				errs = append(errs, err)
			}
		}
		if err := os.RemoveAll(r.dir); err != nil {
			errs = append(errs, fmt.Errorf("remove scratch dir: %w", err))
		}
		metrics.TrackStagedResource(false)

		if len(errs) > 0 {
			r.releaseErr = errs[0]
		}
	})
	return r.releaseErr
}

func safeClose(c io.Closer) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("close panicked: %v", p)
		}
	}()
	return c.Close()
}

// PadWidth returns the zero-padding width for count sequentially numbered
// items: ceil(log10(count)). A count of one yields zero, an un-padded name.
func PadWidth(count int) (int, error) {
	if count <= 0 {
		return 0, ErrNoData
	}
	return int(math.Ceil(math.Log10(float64(count)))), nil
}

// FrameName returns the file name of item index, zero-padded to width.
func FrameName(prefix string, index, width int, ext string) string {
	return fmt.Sprintf("%s%0*d.%s", prefix, width, index, ext)
}

// FramePattern returns the printf-style pattern matching FrameName for width,
// as understood by ffmpeg's image2 demuxer.
func FramePattern(prefix string, width int, ext string) string {
	if width <= 0 {
		return fmt.Sprintf("%s%%d.%s", prefix, ext)
	}
	return fmt.Sprintf("%s%%0%dd.%s", prefix, width, ext)
}
