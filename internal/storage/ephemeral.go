// Package storage writes uploaded audio to uniquely named temporary files
// whose lifetime is bounded to a single request. No audio byte content may
// outlive the request that uploaded it; callers always pair Save with a
// deferred Handle.Remove.
package storage

import (
	"errors"
	"fmt"
	"io"
	"os"

	"speech-transcription-service/internal/observability/logging"
)

// ErrTooLarge is returned when an upload exceeds the configured ceiling.
var ErrTooLarge = errors.New("upload exceeds maximum allowed size")

// Store persists uploads to ephemeral files under a single directory.
type Store struct {
	dir      string
	maxBytes int64 // 0 disables the copy-time ceiling
}

// New creates a store rooted at dir. An empty dir means the OS temp
// directory.
func New(dir string, maxBytes int64) *Store {
	return &Store{dir: dir, maxBytes: maxBytes}
}

// Handle references one ephemeral audio file.
type Handle struct {
	path string
}

// Path returns the on-disk location of the audio file.
func (h *Handle) Path() string {
	return h.path
}

// Remove deletes the backing file. Deletion is best-effort: a file that is
// already gone is not an error, and nothing is escalated to the caller.
func (h *Handle) Remove() {
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		log := logging.WithComponent("storage")
		log.Warn().Err(err).Msg("Failed to remove ephemeral file")
	}
}

// Save copies r into a freshly named temporary file with an audio suffix.
// If the stream exceeds the ceiling the partial file is removed and
// ErrTooLarge is returned; on any write failure no file is left behind.
func (s *Store) Save(r io.Reader) (*Handle, error) {
	f, err := os.CreateTemp(s.dir, "upload-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create ephemeral file: %w", err)
	}

	limit := int64(-1)
	src := r
	if s.maxBytes > 0 {
		limit = s.maxBytes
		src = io.LimitReader(r, s.maxBytes+1)
	}

	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return nil, fmt.Errorf("write ephemeral file: %w", err)
	}
	if limit > 0 && n > limit {
		os.Remove(f.Name())
		return nil, ErrTooLarge
	}

	return &Handle{path: f.Name()}, nil
}
