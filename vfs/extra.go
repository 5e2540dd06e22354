package vfs

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/vfscore/vfscore/internal/opcache"
	"github.com/vfscore/vfscore/internal/vfspath"
	"github.com/vfscore/vfscore/vfserr"
)

// Readv implements spec.md §4.H "readv": fills each buffer in order from
// the handle's current position, advancing it by the total read.
func (h *Handle) Readv(ctx context.Context, bufs [][]byte) (int64, error) {
	var total int64
	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}
		n, err := h.Read(ctx, buf)
		total += int64(n)
		if err != nil {
			return total, err
		}
		if n < len(buf) {
			return total, nil
		}
	}
	return total, nil
}

// Writev implements spec.md §4.H "writev": writes each buffer in order at
// the handle's current position, advancing it by the total written.
func (h *Handle) Writev(ctx context.Context, bufs [][]byte) (int64, error) {
	var total int64
	for _, buf := range bufs {
		if len(buf) == 0 {
			continue
		}
		n, err := h.Write(ctx, buf)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// Mkdtemp implements spec.md §4.H "mkdtemp": creates a new, uniquely named
// directory under prefix's parent, starting with prefix, and returns its
// full path.
func (v *VFS) Mkdtemp(ctx context.Context, prefix string) (string, error) {
	callerPrefix, err := vfspath.Normalize(prefix)
	if err != nil {
		return "", err
	}
	for attempt := 0; attempt < 10; attempt++ {
		suffix, err := randomSuffix()
		if err != nil {
			return "", vfserr.New(vfserr.EIO, "mkdtemp", prefix)
		}
		candidate := callerPrefix + suffix
		if err := v.Mkdir(ctx, candidate, 0o700); err != nil {
			if isEEXIST(err) {
				continue
			}
			return "", err
		}
		return candidate, nil
	}
	return "", vfserr.New(vfserr.EEXIST, "mkdtemp", prefix)
}

func randomSuffix() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// StatfsInfo summarizes filesystem-level capacity, per spec.md §4.H
// "statfs". Concrete backends that don't track real capacity (the
// reference httpindex backend among them) report zero values.
type StatfsInfo struct {
	TotalBytes int64
	FreeBytes  int64
}

// Statfs implements spec.md §4.H "statfs" for the backend mounted at path.
func (v *VFS) Statfs(ctx context.Context, path string) (StatfsInfo, error) {
	cache := opcache.New()
	callerPath, resolvedPath, res, err := v.resolveExisting(ctx, cache, path, true)
	if err != nil {
		return StatfsInfo{}, err
	}
	_ = resolvedPath
	_ = callerPath
	if sf, ok := res.Backend.(interface {
		Statfs(ctx context.Context) (StatfsInfo, error)
	}); ok {
		return sf.Statfs(ctx)
	}
	return StatfsInfo{}, nil
}

// Dir is a stateful directory iterator, spec.md §4.H "opendir"/Dir's
// read()/close() pair.
type Dir struct {
	entries []DirEntry
	pos     int
	closed  bool
}

// Opendir implements spec.md §4.H "opendir": snapshots the directory's
// entries at call time into an iterator.
func (v *VFS) Opendir(ctx context.Context, path string) (*Dir, error) {
	entries, err := v.Readdir(ctx, path, true, false)
	if err != nil {
		return nil, err
	}
	return &Dir{entries: entries}, nil
}

// Read returns the next entry, or (DirEntry{}, false, nil) at end of
// stream.
func (d *Dir) Read() (DirEntry, bool, error) {
	if d.closed {
		return DirEntry{}, false, vfserr.New(vfserr.EBADF, "readdir", "")
	}
	if d.pos >= len(d.entries) {
		return DirEntry{}, false, nil
	}
	e := d.entries[d.pos]
	d.pos++
	return e, true, nil
}

// Close releases the iterator. A second Close is a no-op.
func (d *Dir) Close() error {
	d.closed = true
	return nil
}
