package script

import (
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Cache keeps recently loaded containers for long-running surfaces. An entry
// is reused only while the file's size and modification time are unchanged.
// Cached containers are shared and must be treated as read-only.
type Cache struct {
	entries *lru.Cache[string, cacheEntry]
}

type cacheEntry struct {
	modTime   time.Time
	size      int64
	container *Container
}

// NewCache creates a cache holding up to size containers.
func NewCache(size int) (*Cache, error) {
	l, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: l}, nil
}

// Load returns a cached container for path or loads it. A nil Cache always
// loads from disk.
func (c *Cache) Load(path string) (*Container, error) {
	if c == nil {
		return Load(path)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}

	if e, ok := c.entries.Get(abs); ok && e.size == info.Size() && e.modTime.Equal(info.ModTime()) {
		return e.container, nil
	}

	container, err := Load(path)
	if err != nil {
		c.entries.Remove(abs)
		return nil, err
	}
	c.entries.Add(abs, cacheEntry{modTime: info.ModTime(), size: info.Size(), container: container})
	return container, nil
}

// Len reports how many containers are cached.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.entries.Len()
}
