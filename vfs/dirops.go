package vfs

import (
	"context"
	"sort"

	"github.com/vfscore/vfscore/internal/mount"
	"github.com/vfscore/vfscore/internal/opcache"
	"github.com/vfscore/vfscore/internal/vfsmode"
	"github.com/vfscore/vfscore/internal/vfspath"
	"github.com/vfscore/vfscore/vfserr"
)

// Mkdir implements spec.md §4.H "mkdir" (non-recursive): the parent must
// exist and the target must not.
func (v *VFS) Mkdir(ctx context.Context, path string, mode vfsmode.FileMode) error {
	cache := opcache.New()
	callerPath, err := vfspath.Normalize(path)
	if err != nil {
		return err
	}
	target, err := v.realpath(ctx, cache, vfspath.Dirname(callerPath))
	if err != nil {
		return err
	}
	target = vfspath.Join(target, pathBase(callerPath))
	return v.mkdirOne(ctx, target, callerPath, v.dirMode(mode))
}

// dirMode falls back to v.Opt.DirPerms when a caller passes mode 0,
// i.e. doesn't specify permission bits explicitly.
func (v *VFS) dirMode(mode vfsmode.FileMode) vfsmode.FileMode {
	if mode.Perm() == 0 {
		return v.Opt.DirPerms
	}
	return mode
}

// fileMode is dirMode's counterpart for regular-file creation.
func (v *VFS) fileMode(mode vfsmode.FileMode) vfsmode.FileMode {
	if mode.Perm() == 0 {
		return v.Opt.FilePerms
	}
	return mode
}

func (v *VFS) mkdirOne(ctx context.Context, resolvedPath, callerPath string, mode vfsmode.FileMode) error {
	res, err := v.Table.Resolve(resolvedPath)
	if err != nil {
		return err
	}
	if res.Backend.Exists(ctx, res.Path) {
		return vfserr.New(vfserr.EEXIST, "mkdir", callerPath)
	}
	parentRes, err := v.Table.Resolve(vfspath.Dirname(resolvedPath))
	if err != nil {
		return err
	}
	if !parentRes.Backend.Exists(ctx, parentRes.Path) {
		return vfserr.New(vfserr.ENOENT, "mkdir", callerPath)
	}
	cache := opcache.New()
	if err := v.checkAccess(ctx, cache, parentRes, vfsmode.WOK, "mkdir", callerPath); err != nil {
		return err
	}
	if err := res.Backend.Mkdir(ctx, res.Path, mode); err != nil {
		return rewrite(err, res, callerPath)
	}
	v.emit("rename", callerPath)
	return nil
}

// MkdirAll implements spec.md §4.H "mkdir recursive": create every missing
// ancestor, emitting 'rename' once per directory actually created, and
// returning the first directory that was created (or "" if none were).
func (v *VFS) MkdirAll(ctx context.Context, path string, mode vfsmode.FileMode) (string, error) {
	cache := opcache.New()
	mode = v.dirMode(mode)
	callerPath, err := vfspath.Normalize(path)
	if err != nil {
		return "", err
	}
	resolved, err := v.realpath(ctx, cache, callerPath)
	if err != nil && !isENOENT(err) {
		return "", err
	}
	if resolved == "" {
		resolved = callerPath
	}

	var toCreate []string
	cursor := resolved
	for {
		res, err := v.Table.Resolve(cursor)
		if err != nil {
			return "", err
		}
		if res.Backend.Exists(ctx, res.Path) {
			break
		}
		toCreate = append(toCreate, cursor)
		if vfspath.IsRoot(cursor) {
			break
		}
		cursor = vfspath.Dirname(cursor)
	}

	var firstCreated string
	for i := len(toCreate) - 1; i >= 0; i-- {
		dir := toCreate[i]
		res, err := v.Table.Resolve(dir)
		if err != nil {
			return firstCreated, err
		}
		parentRes, err := v.Table.Resolve(vfspath.Dirname(dir))
		if err != nil {
			return firstCreated, err
		}
		if err := v.checkAccess(ctx, cache, parentRes, vfsmode.WOK, "mkdir", dir); err != nil {
			return firstCreated, err
		}
		if err := res.Backend.Mkdir(ctx, res.Path, mode); err != nil {
			return firstCreated, rewrite(err, res, dir)
		}
		v.emit("rename", dir)
		if firstCreated == "" {
			firstCreated = dir
		}
	}
	return firstCreated, nil
}

// Rmdir implements spec.md §4.H "rmdir": the target must be an empty
// directory.
func (v *VFS) Rmdir(ctx context.Context, path string) error {
	cache := opcache.New()
	callerPath, resolvedPath, res, err := v.resolveExisting(ctx, cache, path, true)
	if err != nil {
		return err
	}
	if err := v.checkAccess(ctx, cache, res, vfsmode.WOK, "rmdir", callerPath); err != nil {
		return err
	}
	entries, err := res.Backend.Readdir(ctx, res.Path)
	if err != nil {
		return rewrite(err, res, callerPath)
	}
	if len(entries) > 0 {
		return vfserr.New(vfserr.EINVAL, "rmdir", callerPath)
	}
	if err := res.Backend.Rmdir(ctx, res.Path); err != nil {
		return rewrite(err, res, callerPath)
	}
	v.emit("rename", callerPath)
	_ = resolvedPath
	return nil
}

// Unlink implements spec.md §4.H "unlink": removes a non-directory entry.
func (v *VFS) Unlink(ctx context.Context, path string) error {
	cache := opcache.New()
	callerPath, resolvedPath, res, err := v.resolveExisting(ctx, cache, path, false)
	if err != nil {
		return err
	}
	stats, err := v.statCached(ctx, cache, res)
	if err != nil {
		return rewrite(err, res, callerPath)
	}
	if stats.IsDir() {
		return vfserr.New(vfserr.EISDIR, "unlink", callerPath)
	}
	parentRes, err := v.Table.Resolve(vfspath.Dirname(resolvedPath))
	if err != nil {
		return err
	}
	if err := v.checkAccess(ctx, cache, parentRes, vfsmode.WOK, "unlink", callerPath); err != nil {
		return err
	}
	if err := res.Backend.Unlink(ctx, res.Path); err != nil {
		return rewrite(err, res, callerPath)
	}
	v.emit("rename", callerPath)
	return nil
}

// DirEntry is one entry returned by Readdir.
type DirEntry struct {
	Name  string
	Stats vfsmode.Stats
}

// Readdir implements spec.md §4.H "readdir". withFileTypes additionally
// stats each entry; recursive walks subdirectories depth-first, yielding
// paths relative to path.
func (v *VFS) Readdir(ctx context.Context, path string, withFileTypes, recursive bool) ([]DirEntry, error) {
	cache := opcache.New()
	callerPath, resolvedPath, res, err := v.resolveExisting(ctx, cache, path, true)
	if err != nil {
		return nil, err
	}
	_ = resolvedPath
	if err := v.checkAccess(ctx, cache, res, vfsmode.ROK, "readdir", callerPath); err != nil {
		return nil, err
	}
	names, err := res.Backend.Readdir(ctx, res.Path)
	if err != nil {
		return nil, rewrite(err, res, callerPath)
	}
	sort.Strings(names)

	entries := make([]DirEntry, 0, len(names))
	for _, name := range names {
		entry := DirEntry{Name: name}
		childResolved := vfspath.Join(res.Path, name)
		if withFileTypes || recursive {
			childRes, err := v.Table.Resolve(vfspath.Join(res.Root, childResolved))
			if err != nil {
				return nil, err
			}
			s, err := v.statCached(ctx, cache, childRes)
			if err != nil {
				return nil, rewrite(err, childRes, vfspath.Join(callerPath, name))
			}
			entry.Stats = s
		}
		entries = append(entries, entry)
		if recursive && entry.Stats.IsDir() {
			// Nested listings do not clear the shared op cache (spec.md
			// §4.F): a single Readdir call threads one cache end to end.
			sub, err := v.readdirWith(ctx, cache, vfspath.Join(callerPath, name), withFileTypes, true)
			if err != nil {
				return nil, err
			}
			for _, s := range sub {
				s.Name = name + "/" + s.Name
				entries = append(entries, s)
			}
		}
	}
	return entries, nil
}

func (v *VFS) readdirWith(ctx context.Context, cache *opcache.Cache, path string, withFileTypes, recursive bool) ([]DirEntry, error) {
	callerPath, _, res, err := v.resolveExisting(ctx, cache, path, true)
	if err != nil {
		return nil, err
	}
	if err := v.checkAccess(ctx, cache, res, vfsmode.ROK, "readdir", callerPath); err != nil {
		return nil, err
	}
	names, err := res.Backend.Readdir(ctx, res.Path)
	if err != nil {
		return nil, rewrite(err, res, callerPath)
	}
	sort.Strings(names)
	entries := make([]DirEntry, 0, len(names))
	for _, name := range names {
		entry := DirEntry{Name: name}
		if withFileTypes || recursive {
			childRes, err := v.Table.Resolve(vfspath.Join(res.Root, res.Path, name))
			if err != nil {
				return nil, err
			}
			s, err := v.statCached(ctx, cache, childRes)
			if err != nil {
				return nil, rewrite(err, childRes, vfspath.Join(callerPath, name))
			}
			entry.Stats = s
		}
		entries = append(entries, entry)
		if recursive && entry.Stats.IsDir() {
			sub, err := v.readdirWith(ctx, cache, vfspath.Join(callerPath, name), withFileTypes, true)
			if err != nil {
				return nil, err
			}
			for _, s := range sub {
				s.Name = name + "/" + s.Name
				entries = append(entries, s)
			}
		}
	}
	return entries, nil
}

// Rm implements spec.md §4.H "rm": removes a file, or a directory tree when
// recursive is set; force suppresses ENOENT.
func (v *VFS) Rm(ctx context.Context, path string, recursive, force bool) error {
	cache := opcache.New()
	callerPath, err := vfspath.Normalize(path)
	if err != nil {
		return err
	}
	resolved, err := v.realpath(ctx, cache, callerPath)
	if err != nil {
		if force && isENOENT(err) {
			return nil
		}
		return err
	}
	res, err := v.Table.Resolve(resolved)
	if err != nil {
		return err
	}
	stats, err := v.statCached(ctx, cache, res)
	if err != nil {
		if force && isENOENT(err) {
			return nil
		}
		return rewrite(err, res, callerPath)
	}
	if !stats.IsDir() {
		return v.Unlink(ctx, callerPath)
	}
	if !recursive {
		return v.Rmdir(ctx, callerPath)
	}
	names, err := res.Backend.Readdir(ctx, res.Path)
	if err != nil {
		return rewrite(err, res, callerPath)
	}
	for _, name := range names {
		if err := v.Rm(ctx, vfspath.Join(callerPath, name), true, force); err != nil {
			return err
		}
	}
	return v.Rmdir(ctx, callerPath)
}

// CopyFilter decides whether a path should be included in a Cp tree walk.
type CopyFilter func(path string) bool

// Cp implements spec.md §4.H "cp": recursively copies src to dst. filter,
// if non-nil, is consulted for every source path visited; a false result
// skips that path (and its subtree, for directories).
func (v *VFS) Cp(ctx context.Context, src, dst string, filter CopyFilter, preserveTimestamps bool) error {
	if filter != nil && !filter(src) {
		return nil
	}
	s, err := v.Stat(ctx, src)
	if err != nil {
		return err
	}
	if !s.IsDir() {
		return v.CopyFile(ctx, src, dst, false, preserveTimestamps)
	}
	if _, err := v.MkdirAll(ctx, dst, s.Mode.Perm()); err != nil && !isEEXIST(err) {
		return err
	}
	entries, err := v.Readdir(ctx, src, false, false)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if err := v.Cp(ctx, vfspath.Join(src, e.Name), vfspath.Join(dst, e.Name), filter, preserveTimestamps); err != nil {
			return err
		}
	}
	return nil
}

// CopyFile implements spec.md §4.H "copy_file": copies a single regular
// file. exclusive rejects an existing destination (COPYFILE_EXCL).
func (v *VFS) CopyFile(ctx context.Context, src, dst string, exclusive, preserveTimestamps bool) error {
	srcStats, err := v.Stat(ctx, src)
	if err != nil {
		return err
	}
	if srcStats.IsDir() {
		return vfserr.New(vfserr.EISDIR, "copy_file", src)
	}
	if exclusive {
		if _, err := v.Stat(ctx, dst); err == nil {
			return vfserr.New(vfserr.EEXIST, "copy_file", dst)
		}
	}
	data, err := v.ReadFile(ctx, src, "r")
	if err != nil {
		return err
	}
	if err := v.WriteFile(ctx, dst, data, "w", srcStats.Mode.Perm()); err != nil {
		return err
	}
	if preserveTimestamps {
		_ = v.Utimes(ctx, dst, srcStats.Atime, srcStats.Mtime)
	}
	return nil
}

// resolveExisting normalizes path, resolves symlinks when followSymlinks
// is set, resolves the mount, and errors if the target is absent — the
// shared prologue of rmdir/unlink/readdir/statfs.
func (v *VFS) resolveExisting(ctx context.Context, cache *opcache.Cache, path string, followSymlinks bool) (callerPath, resolvedPath string, res mount.Resolution, err error) {
	callerPath, err = vfspath.Normalize(path)
	if err != nil {
		return "", "", mount.Resolution{}, err
	}
	resolvedPath = callerPath
	if followSymlinks {
		resolvedPath, err = v.realpath(ctx, cache, callerPath)
		if err != nil {
			return "", "", mount.Resolution{}, err
		}
	}
	res2, err := v.Table.Resolve(resolvedPath)
	if err != nil {
		return "", "", mount.Resolution{}, err
	}
	if !res2.Backend.Exists(ctx, res2.Path) {
		return "", "", mount.Resolution{}, vfserr.New(vfserr.ENOENT, "stat", callerPath)
	}
	return callerPath, resolvedPath, res2, nil
}

func isENOENT(err error) bool {
	errno, ok := vfserr.Errno(err)
	return ok && errno == vfserr.ENOENT
}

func isEEXIST(err error) bool {
	errno, ok := vfserr.Errno(err)
	return ok && errno == vfserr.EEXIST
}

func pathBase(p string) string {
	_, base := vfspath.Parse(p)
	return base
}

