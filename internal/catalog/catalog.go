// Package catalog holds the read-only list of sample videos offered to the
// players. It can be loaded from YAML and reloaded while the server runs.
package catalog

import (
	"errors"
	"fmt"
	"sync"

	"cdn-sim/internal/playback"

	"github.com/samber/lo"
)

// ErrInvalidCatalog is returned when a catalog fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is a concurrency-safe list of videos. Readers always see a complete
// list; Replace swaps it atomically.
type Catalog struct {
	mu     sync.RWMutex
	videos []Video
}

// New validates videos and returns a catalog holding them.
func New(videos []Video) (*Catalog, error) {
	c := &Catalog{}
	if err := c.Replace(videos); err != nil {
		return nil, err
	}
	return c, nil
}

// List returns a copy of all entries in catalog order.
func (c *Catalog) List() []Video {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Video(nil), c.videos...)
}

// Find returns the entry with the given id.
func (c *Catalog) Find(id string) (Video, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return lo.Find(c.videos, func(v Video) bool { return v.ID == id })
}

// First returns the first entry, used for the initial selection.
func (c *Catalog) First() (Video, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.videos) == 0 {
		return Video{}, false
	}
	return c.videos[0], true
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.videos)
}

// Replace validates videos and swaps them in. On error the current list is kept.
func (c *Catalog) Replace(videos []Video) error {
	if err := Validate(videos); err != nil {
		return err
	}
	cp := append([]Video(nil), videos...)

	c.mu.Lock()
	c.videos = cp
	c.mu.Unlock()
	return nil
}

// Validate checks required fields, id uniqueness, and rendition URLs.
func Validate(videos []Video) error {
	if len(videos) == 0 {
		return fmt.Errorf("%w: no videos", ErrInvalidCatalog)
	}
	for i, v := range videos {
		if v.ID == "" {
			return fmt.Errorf("%w: video %d has no id", ErrInvalidCatalog, i)
		}
		if v.Title == "" {
			return fmt.Errorf("%w: video %q has no title", ErrInvalidCatalog, v.ID)
		}
		if err := playback.ValidateSource(v.Source()); err != nil {
			return fmt.Errorf("%w: video %q: %v", ErrInvalidCatalog, v.ID, err)
		}
	}
	if dups := lo.FindDuplicatesBy(videos, func(v Video) string { return v.ID }); len(dups) > 0 {
		ids := lo.Map(dups, func(v Video, _ int) string { return v.ID })
		return fmt.Errorf("%w: duplicate ids %v", ErrInvalidCatalog, ids)
	}
	return nil
}
