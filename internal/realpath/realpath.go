// Package realpath implements the symlink-aware path resolver (spec.md
// §4.G): walk a path component by component, following symlinks (stored
// as regular files whose body is the UTF-8 link target), detecting
// cycles, memoizing into a per-operation cache. Every lookup goes through
// the mount table, so a link whose target lies on another mount is
// followed there; no separate check is made for mount crossings.
package realpath

import (
	"context"
	"io"
	"unicode/utf8"

	"github.com/vfscore/vfscore/internal/mount"
	"github.com/vfscore/vfscore/internal/opcache"
	"github.com/vfscore/vfscore/internal/vfsflags"
	"github.com/vfscore/vfscore/internal/vfspath"
	"github.com/vfscore/vfscore/vfserr"
)

func readOnlyFlags() vfsflags.Flags {
	return vfsflags.Flags{Readable: true, MustExist: true}
}

// Resolve returns the fully dereferenced absolute form of path, or the
// original path if any intermediate component raises ENOENT (POSIX
// realpath(2) compatibility for unresolvable tails, spec.md §4.G step 7).
func Resolve(ctx context.Context, table *mount.Table, cache *opcache.Cache, path string) (string, error) {
	norm, err := vfspath.Normalize(path)
	if err != nil {
		return "", err
	}
	visiting := make(map[string]bool)
	real, err := resolve(ctx, table, cache, visiting, norm)
	if err != nil {
		if errno, ok := vfserr.Errno(err); ok && errno == vfserr.ENOENT {
			return norm, nil
		}
		return "", err
	}
	return real, nil
}

func resolve(ctx context.Context, table *mount.Table, cache *opcache.Cache, visiting map[string]bool, path string) (string, error) {
	if vfspath.IsRoot(path) {
		return "/", nil
	}
	if real, ok := cache.Path(path); ok {
		return real, nil
	}
	if visiting[path] {
		return "", vfserr.New(vfserr.ELOOP, "realpath", path)
	}
	visiting[path] = true
	defer delete(visiting, path)

	dir, base := vfspath.Parse(path)
	realDir, err := resolve(ctx, table, cache, visiting, dir)
	if err != nil {
		return "", err
	}
	lpath := vfspath.Join(realDir, base)

	stats, ok := cache.Stat(lpath)
	if !ok {
		res, err := table.Resolve(lpath)
		if err != nil {
			return "", err
		}
		stats, err = res.Backend.Stat(ctx, res.Path)
		if err != nil {
			return "", rewriteErr(err, res.Path, lpath)
		}
		cache.PutStat(lpath, stats)
	}

	if !stats.IsSymlink() {
		cache.PutPath(path, lpath)
		return lpath, nil
	}

	target, err := readSymlinkTarget(ctx, table, lpath)
	if err != nil {
		return "", err
	}
	targetAbs, err := vfspath.Resolve(realDir, target)
	if err != nil {
		return "", err
	}
	real, err := resolve(ctx, table, cache, visiting, targetAbs)
	if err != nil {
		return "", err
	}
	cache.PutPath(path, real)
	return real, nil
}

// readSymlinkTarget reads the full body of the regular file backing a
// symlink at the given (already mount-resolved) absolute path, and
// validates it as UTF-8 (spec.md §7: invalid UTF-8 in a symlink body is
// EINVAL).
func readSymlinkTarget(ctx context.Context, table *mount.Table, lpath string) (string, error) {
	res, err := table.Resolve(lpath)
	if err != nil {
		return "", err
	}
	stats, err := res.Backend.Stat(ctx, res.Path)
	if err != nil {
		return "", rewriteErr(err, res.Path, lpath)
	}
	buf := make([]byte, stats.Size)
	fh, err := res.Backend.OpenFile(ctx, res.Path, readOnlyFlags())
	if err != nil {
		return "", rewriteErr(err, res.Path, lpath)
	}
	defer fh.Close()
	n, err := fh.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return "", rewriteErr(err, res.Path, lpath)
	}
	buf = buf[:n]
	if !utf8.Valid(buf) {
		return "", vfserr.New(vfserr.EINVAL, "readlink", lpath)
	}
	return string(buf), nil
}

func rewriteErr(err error, backendPath, callerPath string) error {
	return vfserr.WithPath(err, map[string]string{backendPath: callerPath})
}
