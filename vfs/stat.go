package vfs

import (
	"context"
	"time"

	"github.com/vfscore/vfscore/internal/opcache"
	"github.com/vfscore/vfscore/internal/vfsflags"
	"github.com/vfscore/vfscore/internal/vfsmode"
	"github.com/vfscore/vfscore/internal/vfspath"
	"github.com/vfscore/vfscore/vfserr"
)

// Stat implements spec.md §4.H "stat": resolves symlinks first.
func (v *VFS) Stat(ctx context.Context, path string) (vfsmode.Stats, error) {
	cache := opcache.New()
	return v.stat(ctx, cache, path, true)
}

// Lstat implements spec.md §4.H "lstat": does not resolve symlinks.
func (v *VFS) Lstat(ctx context.Context, path string) (vfsmode.Stats, error) {
	cache := opcache.New()
	return v.stat(ctx, cache, path, false)
}

func (v *VFS) stat(ctx context.Context, cache *opcache.Cache, path string, followSymlinks bool) (vfsmode.Stats, error) {
	callerPath, err := vfspath.Normalize(path)
	if err != nil {
		return vfsmode.Stats{}, err
	}
	target := callerPath
	if followSymlinks {
		target, err = v.realpath(ctx, cache, callerPath)
		if err != nil {
			return vfsmode.Stats{}, err
		}
	}
	res, err := v.Table.Resolve(target)
	if err != nil {
		return vfsmode.Stats{}, err
	}
	s, err := v.statCached(ctx, cache, res)
	if err != nil {
		return vfsmode.Stats{}, rewrite(err, res, callerPath)
	}
	return s, nil
}

// Chmod implements spec.md §4.H "chmod": open r+, delegate, close.
func (v *VFS) Chmod(ctx context.Context, path string, mode vfsmode.FileMode) error {
	return v.withFileHandle(ctx, path, true, func(fh *fileHandleResolved) error {
		return fh.backend.Chmod(ctx, mode)
	})
}

// Lchmod is Chmod but operates on the symlink itself, not its target.
func (v *VFS) Lchmod(ctx context.Context, path string, mode vfsmode.FileMode) error {
	return v.withFileHandle(ctx, path, false, func(fh *fileHandleResolved) error {
		return fh.backend.Chmod(ctx, mode)
	})
}

// Chown implements spec.md §4.H "chown".
func (v *VFS) Chown(ctx context.Context, path string, uid, gid uint32) error {
	return v.withFileHandle(ctx, path, true, func(fh *fileHandleResolved) error {
		return fh.backend.Chown(ctx, uid, gid)
	})
}

// Lchown is Chown but operates on the symlink itself.
func (v *VFS) Lchown(ctx context.Context, path string, uid, gid uint32) error {
	return v.withFileHandle(ctx, path, false, func(fh *fileHandleResolved) error {
		return fh.backend.Chown(ctx, uid, gid)
	})
}

// Utimes implements spec.md §4.H "utimes".
func (v *VFS) Utimes(ctx context.Context, path string, atime, mtime time.Time) error {
	return v.withFileHandle(ctx, path, true, func(fh *fileHandleResolved) error {
		return fh.backend.Utimes(ctx, atime, mtime)
	})
}

// Lutimes is Utimes but operates on the symlink itself.
func (v *VFS) Lutimes(ctx context.Context, path string, atime, mtime time.Time) error {
	return v.withFileHandle(ctx, path, false, func(fh *fileHandleResolved) error {
		return fh.backend.Utimes(ctx, atime, mtime)
	})
}

// Truncate implements spec.md §4.H "truncate": negative length is EINVAL.
func (v *VFS) Truncate(ctx context.Context, path string, size int64) error {
	if size < 0 {
		return vfserr.New(vfserr.EINVAL, "truncate", path)
	}
	return v.withFileHandle(ctx, path, true, func(fh *fileHandleResolved) error {
		return fh.backend.Truncate(ctx, size)
	})
}

// Ftruncate implements spec.md §4.H "ftruncate" against an already-open
// handle.
func (v *VFS) Ftruncate(ctx context.Context, h *Handle, size int64) error {
	if size < 0 {
		return vfserr.New(vfserr.EINVAL, "ftruncate", "")
	}
	fh, err := h.vfs.lookupHandle(h.FD)
	if err != nil {
		return err
	}
	return fh.backend.Truncate(ctx, size)
}

// fileHandleResolved wraps the opened backend handle used by the
// open-r+-delegate-close family of operations (chmod/chown/utimes).
type fileHandleResolved struct {
	backend interface {
		Chmod(ctx context.Context, mode vfsmode.FileMode) error
		Chown(ctx context.Context, uid, gid uint32) error
		Utimes(ctx context.Context, atime, mtime time.Time) error
		Truncate(ctx context.Context, size int64) error
	}
}

// withFileHandle resolves path (optionally following symlinks), opens it
// "r+"-equivalent on the backend side, runs fn, and closes it — the
// pattern spec.md §4.H describes for chmod/lchmod/chown/lchown/utimes/
// lutimes.
func (v *VFS) withFileHandle(ctx context.Context, path string, followSymlinks bool, fn func(*fileHandleResolved) error) error {
	cache := opcache.New()
	callerPath, err := vfspath.Normalize(path)
	if err != nil {
		return err
	}
	target := callerPath
	if followSymlinks {
		target, err = v.realpath(ctx, cache, callerPath)
		if err != nil {
			return err
		}
	}
	res, err := v.Table.Resolve(target)
	if err != nil {
		return err
	}
	bh, err := res.Backend.OpenFile(ctx, res.Path, rplusFlags)
	if err != nil {
		return rewrite(err, res, callerPath)
	}
	defer bh.Close()
	if err := fn(&fileHandleResolved{backend: bh}); err != nil {
		return rewrite(err, res, callerPath)
	}
	return nil
}

// rplusFlags is the "r+"-equivalent capability record used internally by
// the chmod/chown/utimes/truncate family, which operate on an already
// existing file without creating or truncating it.
var rplusFlags = vfsflags.Flags{Readable: true, Writable: true, MustExist: true}
