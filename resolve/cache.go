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
package resolve

import (
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize bounds the number of memoized resolutions.
const DefaultCacheSize = 4096

type cacheKey struct {
	dir        string
	specifier  string
	conditions string
}

type cacheEntry struct {
	module *ResolvedModule
	err    error
}

// Cache memoizes resolutions for one build invocation, keyed by the
// canonicalized importing directory, the specifier and the conditions.
// It is safe for concurrent use.
type Cache struct {
	entries       *lru.Cache[cacheKey, cacheEntry]
	caseSensitive bool
	hits          atomic.Int64
	misses        atomic.Int64
}

// NewCache creates a Cache holding up to size entries; size <= 0 selects
// DefaultCacheSize. When caseSensitive is false, directories differing only
// in case share entries.
func NewCache(size int, caseSensitive bool) (*Cache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	entries, err := lru.New[cacheKey, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &Cache{entries: entries, caseSensitive: caseSensitive}, nil
}

// Stats returns the number of cache hits and misses so far.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len returns the number of cached resolutions.
func (c *Cache) Len() int {
	return c.entries.Len()
}

func (c *Cache) canonical(dir string) string {
	dir = filepath.Clean(dir)
	if !c.caseSensitive {
		dir = strings.ToLower(dir)
	}
	return dir
}

// getOrResolve returns the cached resolution for dir, resolving on a miss.
// Errors name parent as the importer, whichever file first missed.
func (c *Cache) getOrResolve(dir, specifier, parent string, conditions []string, resolve func() (*ResolvedModule, error)) (*ResolvedModule, error) {
	key := cacheKey{
		dir:        c.canonical(dir),
		specifier:  specifier,
		conditions: strings.Join(conditions, ","),
	}
	if entry, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return entry.copy(parent)
	}
	c.misses.Add(1)

	mod, err := resolve()
	entry := cacheEntry{module: mod, err: err}
	c.entries.Add(key, entry)
	return entry.copy(parent)
}

func (e cacheEntry) copy(parent string) (*ResolvedModule, error) {
	if e.err != nil {
		var rerr *Error
		if errors.As(e.err, &rerr) {
			dup := *rerr
			dup.Parent = parent
			return nil, &dup
		}
		return nil, e.err
	}
	mod := *e.module
	return &mod, nil
}
