// Package uploads stores user-supplied video files for the lifetime of a
// selection. Each file is addressed by a generated id and removed when the
// upload is released.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
)

var (
	// ErrNotFound is returned for ids that were never saved or already released.
	ErrNotFound = errors.New("upload not found")

	// ErrTooLarge is returned when an upload exceeds the size limit.
	ErrTooLarge = errors.New("upload too large")
)

// Upload is a saved file reachable at URL until Release is called.
type Upload struct {
	ID      string    `json:"upload_id"`
	Name    string    `json:"name"`
	URL     string    `json:"url"`
	Size    int64     `json:"size"`
	SavedAt time.Time `json:"saved_at"`

	once    sync.Once
	release func()
}

// Release removes the file. Only the first call has any effect.
func (u *Upload) Release() {
	if u == nil {
		return
	}
	u.once.Do(func() {
		if u.release != nil {
			u.release()
		}
	})
}

// Store keeps uploads on an afero filesystem.
type Store struct {
	fs        afero.Fs
	dir       string
	urlPrefix string

	mu      sync.RWMutex
	uploads map[string]*Upload
}

// NewStore returns a store writing under dir. Upload URLs are urlPrefix
// joined with the upload id.
func NewStore(fs afero.Fs, dir, urlPrefix string) (*Store, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Store{
		fs:        fs,
		dir:       dir,
		urlPrefix: urlPrefix,
		uploads:   make(map[string]*Upload),
	}, nil
}

// Save copies at most limit bytes from r into a new upload. A non-positive
// limit disables the check.
func (s *Store) Save(name string, r io.Reader, limit int64) (*Upload, error) {
	id := uuid.NewString()
	p := s.pathFor(id)

	f, err := s.fs.Create(p)
	if err != nil {
		return nil, fmt.Errorf("create upload: %w", err)
	}

	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}
	n, err := io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = s.fs.Remove(p)
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if limit > 0 && n > limit {
		_ = s.fs.Remove(p)
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, limit)
	}

	u := &Upload{
		ID:      id,
		Name:    filepath.Base(name),
		URL:     path.Join(s.urlPrefix, id),
		Size:    n,
		SavedAt: time.Now().UTC(),
	}
	u.release = func() { s.remove(id) }

	s.mu.Lock()
	s.uploads[id] = u
	s.mu.Unlock()
	return u, nil
}

// Get returns the live upload with the given id.
func (s *Store) Get(id string) (*Upload, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.uploads[id]
	return u, ok
}

// Open returns the content of a live upload. The caller closes the file.
func (s *Store) Open(id string) (afero.File, *Upload, error) {
	u, ok := s.Get(id)
	if !ok {
		return nil, nil, ErrNotFound
	}
	f, err := s.fs.Open(s.pathFor(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("open upload: %w", err)
	}
	return f, u, nil
}

// Len returns the number of live uploads.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.uploads)
}

func (s *Store) remove(id string) {
	s.mu.Lock()
	delete(s.uploads, id)
	s.mu.Unlock()
	_ = s.fs.Remove(s.pathFor(id))
}

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.dir, id)
}
