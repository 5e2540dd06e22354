// Package backend defines the capability interface every concrete store
// must implement to be mounted into the VFS (spec.md §3 "Backend",
// §4.H). Dynamic dispatch over backend kinds becomes this interface
// instead of inheritance, per spec.md §9.
package backend

import (
	"context"
	"time"

	"github.com/vfscore/vfscore/internal/vfsflags"
	"github.com/vfscore/vfscore/internal/vfsmode"
)

// Backend is a concrete filesystem implementation mounted at some point in
// the VFS's mount table. All paths passed to a Backend are already
// backend-relative (the mount point prefix has been stripped).
type Backend interface {
	Stat(ctx context.Context, path string) (vfsmode.Stats, error)
	OpenFile(ctx context.Context, path string, flags vfsflags.Flags) (FileHandle, error)
	CreateFile(ctx context.Context, path string, flags vfsflags.Flags, mode vfsmode.FileMode) (FileHandle, error)
	Mkdir(ctx context.Context, path string, mode vfsmode.FileMode) error
	Rmdir(ctx context.Context, path string) error
	Unlink(ctx context.Context, path string) error
	Readdir(ctx context.Context, path string) ([]string, error)
	Exists(ctx context.Context, path string) bool

	// Rename and Link are only ever called same-backend: the dispatch
	// layer detects a cross-backend rename/link and falls back to
	// copy+unlink or EXDEV respectively (spec.md §4.H, §4.E).
	Rename(ctx context.Context, oldPath, newPath string) error
	Link(ctx context.Context, target, linkPath string) error
}

// FileHandle is a backend-owned open file (spec.md §3 "File handle").
// Position bookkeeping belongs to the dispatch layer's handle wrapper, not
// here: a FileHandle only knows how to read/write at an explicit offset
// and answer metadata operations.
type FileHandle interface {
	ReadAt(p []byte, off int64) (n int, err error)
	WriteAt(p []byte, off int64) (n int, err error)
	Stat(ctx context.Context) (vfsmode.Stats, error)
	Truncate(ctx context.Context, size int64) error
	Chmod(ctx context.Context, mode vfsmode.FileMode) error
	Chown(ctx context.Context, uid, gid uint32) error
	Utimes(ctx context.Context, atime, mtime time.Time) error
	Sync() error
	Datasync() error
	Close() error
}
