// Package mount implements the VFS's mount table: longest-prefix routing
// of absolute paths to a concrete Backend (spec.md §3 "Mount", §4.E).
// Modeled after rclone's backend/union routing of a path across several
// upstream Fs instances, simplified from union's N-way merge-by-policy
// down to this spec's single-owner longest-prefix match.
package mount

import (
	"sort"
	"strings"
	"sync"

	"github.com/vfscore/vfscore/backend"
	"github.com/vfscore/vfscore/internal/vfspath"
	"github.com/vfscore/vfscore/vfserr"
)

// Mount binds an absolute mount point to a Backend.
type Mount struct {
	Point   string
	Backend backend.Backend
}

// Table is the VFS's mount table. Exactly one root mount ("/") must exist
// at all times (spec.md §3 invariant); mutation is the host's
// responsibility and must be externally serialized with outstanding
// operations (spec.md §5).
type Table struct {
	mu     sync.RWMutex
	mounts map[string]backend.Backend
}

// New returns a mount table with root mounted at root.
func New(root backend.Backend) *Table {
	return &Table{mounts: map[string]backend.Backend{"/": root}}
}

// Mount adds or replaces the backend at point. point must be absolute.
func (t *Table) Mount(point string, b backend.Backend) error {
	norm, err := vfspath.Normalize(point)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mounts[norm] = b
	return nil
}

// Unmount removes the mount at point. The root mount ("/") may not be
// removed.
func (t *Table) Unmount(point string) error {
	norm, err := vfspath.Normalize(point)
	if err != nil {
		return err
	}
	if norm == "/" {
		return vfserr.New(vfserr.EINVAL, "umount", point)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.mounts[norm]; !ok {
		return vfserr.New(vfserr.ENOENT, "umount", point)
	}
	delete(t.mounts, norm)
	return nil
}

// Resolution is the result of resolving a path through the mount table.
type Resolution struct {
	Backend backend.Backend
	Path    string // backend-relative path, always starting with "/"
	Root    string // the mount point that matched
}

// Resolve picks the longest mount point that is a prefix of path, per
// spec.md §4.E: mount points are tried in descending length order, the
// first prefix match wins, and the mount point is stripped from path
// (preserving a leading slash).
func (t *Table) Resolve(path string) (Resolution, error) {
	norm, err := vfspath.Normalize(path)
	if err != nil {
		return Resolution{}, err
	}

	t.mu.RLock()
	points := make([]string, 0, len(t.mounts))
	for p := range t.mounts {
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return len(points[i]) > len(points[j]) })

	for _, point := range points {
		if isPrefix(point, norm) {
			rel := strings.TrimPrefix(norm, point)
			if rel == "" {
				rel = "/"
			} else if !strings.HasPrefix(rel, "/") {
				rel = "/" + rel
			}
			b := t.mounts[point]
			t.mu.RUnlock()
			return Resolution{Backend: b, Path: rel, Root: point}, nil
		}
	}
	t.mu.RUnlock()
	// The root mount always exists and is always a prefix of any absolute
	// path, so this is unreachable in a well-formed table.
	return Resolution{}, vfserr.New(vfserr.ENOENT, "resolve_mount", path)
}

func isPrefix(mountPoint, path string) bool {
	if mountPoint == "/" {
		return true
	}
	return path == mountPoint || strings.HasPrefix(path, mountPoint+"/")
}
