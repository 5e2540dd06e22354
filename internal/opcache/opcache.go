// Package opcache implements the per-operation realpath/stat memoization
// described in spec.md §4.F: two write-through maps scoped to a single
// compound VFS call, threaded into sub-calls through an explicit parameter
// rather than global state (spec.md §9's redesign note).
package opcache

import "github.com/vfscore/vfscore/internal/vfsmode"

// Cache memoizes realpath and stat lookups made during a single compound
// VFS call.
type Cache struct {
	paths map[string]string
	stats map[string]vfsmode.Stats
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{
		paths: make(map[string]string),
		stats: make(map[string]vfsmode.Stats),
	}
}

// Path returns the cached realpath for p, if any.
func (c *Cache) Path(p string) (string, bool) {
	if c == nil {
		return "", false
	}
	v, ok := c.paths[p]
	return v, ok
}

// PutPath records the realpath of p.
func (c *Cache) PutPath(p, real string) {
	if c == nil {
		return
	}
	c.paths[p] = real
}

// Stat returns the cached Stats for p, if any.
func (c *Cache) Stat(p string) (vfsmode.Stats, bool) {
	if c == nil {
		return vfsmode.Stats{}, false
	}
	v, ok := c.stats[p]
	return v, ok
}

// PutStat records the Stats for p.
func (c *Cache) PutStat(p string, s vfsmode.Stats) {
	if c == nil {
		return
	}
	c.stats[p] = s
}

// Clear empties both maps. Called only by the outermost dispatch frame
// (spec.md §4.F: "Only the outermost frame clears it").
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.paths = make(map[string]string)
	c.stats = make(map[string]vfsmode.Stats)
}
