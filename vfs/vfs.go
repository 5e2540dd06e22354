// Package vfs implements the dispatch surface described in spec.md §4.H:
// the operations exposed to callers, normalizing paths, resolving mounts,
// optionally resolving symlinks, invoking the backend, and on failure
// rewriting backend-relative paths back to what the caller passed in.
//
// Naming follows github.com/rclone/rclone's vfs package (inferred from its
// surviving vfs/*_test.go files: New, baseHandle, the ENOSYS/Error type),
// though the package itself had to be rebuilt from scratch — the
// teacher's own vfs/vfs.go, dir.go, file.go were not present in the
// retrieval pack, only their tests.
package vfs

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/vfscore/vfscore/backend"
	"github.com/vfscore/vfscore/internal/fdtable"
	"github.com/vfscore/vfscore/internal/mount"
	"github.com/vfscore/vfscore/internal/opcache"
	"github.com/vfscore/vfscore/internal/realpath"
	"github.com/vfscore/vfscore/internal/vfsflags"
	"github.com/vfscore/vfscore/internal/vfslog"
	"github.com/vfscore/vfscore/internal/vfsmode"
	"github.com/vfscore/vfscore/internal/vfspath"
	"github.com/vfscore/vfscore/vfs/vfscommon"
	"github.com/vfscore/vfscore/vfserr"
)

// Emitter receives change notifications. Construction and transport of the
// actual watcher/event system is an external collaborator (spec.md §1);
// this is only the trigger-point interface the dispatch layer calls into.
type Emitter interface {
	// Emit reports that event ("rename" or "change") happened to path,
	// the affected caller-visible path.
	Emit(event, path string)
}

type nopEmitter struct{}

func (nopEmitter) Emit(string, string) {}

// VFS is the dispatch layer: a mount table, an FD table, and the options
// every operation is evaluated against.
type VFS struct {
	Table   *mount.Table
	Opt     vfscommon.Options
	fds     *fdtable.Table
	emitter Emitter
}

// New constructs a VFS rooted at root, with opt (nil means
// vfscommon.Default()).
func New(root backend.Backend, opt *vfscommon.Options) *VFS {
	o := vfscommon.Default()
	if opt != nil {
		o = *opt
	}
	return &VFS{
		Table:   mount.New(root),
		Opt:     o,
		fds:     fdtable.New(),
		emitter: nopEmitter{},
	}
}

// SetEmitter installs the change-notification sink. The zero value is a
// no-op emitter, so constructing a VFS without one is always safe.
func (v *VFS) SetEmitter(e Emitter) {
	if e == nil {
		e = nopEmitter{}
	}
	v.emitter = e
}

func (v *VFS) emit(event, path string) {
	vfslog.Changed(event, event, path)
	v.emitter.Emit(event, path)
}

// rewrite builds the backend-path -> caller-path lookup table for a single
// call entry, and rewrites err's path through it if err is a structured
// *vfserr.Error.
func rewrite(err error, res mount.Resolution, callerPath string) error {
	if err == nil {
		return nil
	}
	lookup := map[string]string{res.Path: callerPath}
	rewritten := vfserr.WithPath(err, lookup)
	if rewritten == err {
		// err didn't carry a structured path to rewrite; still record
		// the operation's context via wrapping so %+v retains it.
		return errors.Wrapf(err, "path %s", callerPath)
	}
	return rewritten
}

// fileHandle is the dispatch layer's wrapper around a backend.FileHandle:
// it owns the open-mode flags and the read/write position (spec.md §3
// "File handle"). A handle exclusively owns its position.
type fileHandle struct {
	mu       sync.Mutex
	path     string // caller-visible path
	flags    vfsflags.Flags
	position int64
	backend  backend.FileHandle
}

func (h *fileHandle) Close() error {
	return h.backend.Close()
}

// Handle is the caller-facing open file: an integer fd bound into the
// VFS's FD table, plus the VFS that owns that table. Every read, write
// and stat through a Handle looks its fd up in the table.
type Handle struct {
	FD  uint32
	vfs *VFS
}

func (v *VFS) newHandle(h *fileHandle) *Handle {
	fd := v.fds.Open(h)
	return &Handle{FD: fd, vfs: v}
}

func (v *VFS) lookupHandle(fd uint32) (*fileHandle, error) {
	raw, err := v.fds.Get(fd)
	if err != nil {
		return nil, err
	}
	h, ok := raw.(*fileHandle)
	if !ok {
		return nil, vfserr.New(vfserr.EBADF, "fstat", "")
	}
	return h, nil
}

// Close closes h via the FD table (spec.md §4.D: close_sync removes the
// entry exactly once; double-close fails).
func (h *Handle) Close() error {
	return h.vfs.fds.CloseSync(h.FD)
}

// Open implements spec.md §4.H "open": normalize, optionally resolve
// symlinks, resolve the mount, stat, and branch on existence.
func (v *VFS) Open(ctx context.Context, path string, flag string, mode vfsmode.FileMode, resolveSymlinks bool) (*Handle, error) {
	flags, err := vfsflags.ParseString(flag)
	if err != nil {
		return nil, err
	}
	cache := opcache.New()
	h, err := v.open(ctx, cache, path, flags, mode, resolveSymlinks)
	if err != nil {
		return nil, err
	}
	return v.newHandle(h), nil
}

func (v *VFS) open(ctx context.Context, cache *opcache.Cache, path string, flags vfsflags.Flags, mode vfsmode.FileMode, resolveSymlinks bool) (*fileHandle, error) {
	callerPath, err := vfspath.Normalize(path)
	if err != nil {
		return nil, err
	}
	resolvedPath := callerPath
	if resolveSymlinks {
		resolvedPath, err = v.realpath(ctx, cache, callerPath)
		if err != nil {
			return nil, err
		}
	}
	res, err := v.Table.Resolve(resolvedPath)
	if err != nil {
		return nil, err
	}
	vfslog.MountResolved(callerPath, res.Root, res.Path)

	stats, statErr := v.statCached(ctx, cache, res)
	identity := v.Opt.Context()

	if statErr != nil {
		errno, _ := vfserr.Errno(statErr)
		if errno != vfserr.ENOENT {
			return nil, rewrite(statErr, res, callerPath)
		}
		// Absent: flag must permit writing and not require existence
		// (spec.md §4.H: "flag must permit writing and not equal r+").
		if !flags.Writable || flags.MustExist {
			return nil, vfserr.New(vfserr.ENOENT, "open", callerPath)
		}
		parentRes, err := v.Table.Resolve(vfspath.Dirname(resolvedPath))
		if err != nil {
			return nil, err
		}
		parentStats, err := parentRes.Backend.Stat(ctx, parentRes.Path)
		if err != nil {
			return nil, rewrite(err, parentRes, vfspath.Dirname(callerPath))
		}
		if !parentStats.IsDir() {
			return nil, vfserr.New(vfserr.ENOTDIR, "open", callerPath)
		}
		if !vfsmode.HasAccess(parentStats.Mode, parentStats.UID, parentStats.GID, identity, vfsmode.WOK) {
			vfslog.AccessDenied("open", callerPath)
			return nil, vfserr.New(vfserr.EACCES, "open", callerPath)
		}
		bh, err := res.Backend.CreateFile(ctx, res.Path, flags, v.fileMode(mode))
		if err != nil {
			return nil, rewrite(err, res, callerPath)
		}
		return &fileHandle{path: callerPath, flags: flags, backend: bh}, nil
	}

	if stats.IsDir() && flags.Writable {
		return nil, vfserr.New(vfserr.EISDIR, "open", callerPath)
	}
	if flags.Exclusive {
		return nil, vfserr.New(vfserr.EEXIST, "open", callerPath)
	}
	if !vfsmode.HasAccess(stats.Mode, stats.UID, stats.GID, identity, flags.Mode()) {
		vfslog.AccessDenied("open", callerPath)
		return nil, vfserr.New(vfserr.EACCES, "open", callerPath)
	}
	bh, err := res.Backend.OpenFile(ctx, res.Path, flags)
	if err != nil {
		return nil, rewrite(err, res, callerPath)
	}
	fh := &fileHandle{path: callerPath, flags: flags, backend: bh}
	if flags.Truncating {
		if err := bh.Truncate(ctx, 0); err != nil {
			return nil, rewrite(err, res, callerPath)
		}
	}
	if flags.Appendable {
		// Position is set to EOF on append-open (spec.md §9: the
		// source leaves this undefined; we set it explicitly, per
		// the spec's own recommendation).
		s, err := bh.Stat(ctx)
		if err == nil {
			fh.position = s.Size
		}
	}
	return fh, nil
}

func (v *VFS) realpath(ctx context.Context, cache *opcache.Cache, path string) (string, error) {
	return realpath.Resolve(ctx, v.Table, cache, path)
}

func (v *VFS) statCached(ctx context.Context, cache *opcache.Cache, res mount.Resolution) (vfsmode.Stats, error) {
	if s, ok := cache.Stat(res.Path); ok {
		return s, nil
	}
	s, err := res.Backend.Stat(ctx, res.Path)
	if err != nil {
		return vfsmode.Stats{}, err
	}
	cache.PutStat(res.Path, s)
	return s, nil
}

// checkAccess stats res and enforces want against v.Opt's identity
// (spec.md §4.B): mkdir/unlink/rename require write on the parent
// directory, rmdir requires write on the directory itself, readdir
// requires read, and link requires read on its target. A no-op when
// v.Opt.CheckAccess is false.
func (v *VFS) checkAccess(ctx context.Context, cache *opcache.Cache, res mount.Resolution, want vfsmode.AccessMode, op, callerPath string) error {
	s, err := v.statCached(ctx, cache, res)
	if err != nil {
		return rewrite(err, res, callerPath)
	}
	if !vfsmode.HasAccess(s.Mode, s.UID, s.GID, v.Opt.Context(), want) {
		vfslog.AccessDenied(op, callerPath)
		return vfserr.New(vfserr.EACCES, op, callerPath)
	}
	return nil
}
