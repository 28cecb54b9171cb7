/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package packagejson

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sync"

	duetfs "bennypowers.dev/duet/fs"
)

// Cache holds parsed package.json files for the duration of one build.
// Resolution works without a cache; a cache only saves repeated parsing.
type Cache interface {
	// GetOrLoad returns the cached result for path, running loader at most
	// once per path even when called concurrently.
	GetOrLoad(path string, loader func() (*PackageJSON, error)) (*PackageJSON, error)

	// Invalidate forgets path, typically because the file changed.
	Invalidate(path string)
}

type cacheEntry struct {
	once sync.Once
	pkg  *PackageJSON
	err  error
}

// MemoryCache is a thread-safe in-memory Cache. Load failures, including
// missing files, are cached too, so a package scope walk probes each
// directory once.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*cacheEntry)}
}

// GetOrLoad implements Cache.
func (c *MemoryCache) GetOrLoad(path string, loader func() (*PackageJSON, error)) (*PackageJSON, error) {
	c.mu.Lock()
	entry, ok := c.entries[path]
	if !ok {
		entry = &cacheEntry{}
		c.entries[path] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.pkg, entry.err = loader()
	})
	return entry.pkg, entry.err
}

// Invalidate implements Cache.
func (c *MemoryCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Len returns the number of cached paths.
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Load reads and parses the package.json at path, through cache when non-nil.
func Load(fsys duetfs.FileSystem, cache Cache, path string) (*PackageJSON, error) {
	if cache == nil {
		return ParseFile(fsys, path)
	}
	return cache.GetOrLoad(path, func() (*PackageJSON, error) {
		return ParseFile(fsys, path)
	})
}

// Nearest finds the package.json that governs files in dir: the closest one
// walking upward, without crossing out of a node_modules directory.
// It returns ("", nil, nil) when there is none.
func Nearest(fsys duetfs.FileSystem, cache Cache, dir string) (string, *PackageJSON, error) {
	dir = filepath.Clean(dir)
	for {
		if filepath.Base(dir) == "node_modules" {
			return "", nil, nil
		}
		candidate := filepath.Join(dir, "package.json")
		pkg, err := Load(fsys, cache, candidate)
		switch {
		case err == nil:
			return candidate, pkg, nil
		case !errors.Is(err, fs.ErrNotExist):
			return candidate, nil, err
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, nil
		}
		dir = parent
	}
}
