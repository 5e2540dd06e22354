package vfs

import (
	"context"
	"io"

	"github.com/vfscore/vfscore/internal/opcache"
	"github.com/vfscore/vfscore/internal/vfsflags"
	"github.com/vfscore/vfscore/internal/vfsmode"
	"github.com/vfscore/vfscore/internal/vfspath"
	"github.com/vfscore/vfscore/vfserr"
)

// Rename implements spec.md §4.H "rename": same-backend renames delegate
// directly; cross-backend renames fall back to copy+unlink, per spec.md
// §4.E's EXDEV note.
func (v *VFS) Rename(ctx context.Context, oldPath, newPath string) error {
	cache := opcache.New()
	oldCaller, err := vfspath.Normalize(oldPath)
	if err != nil {
		return err
	}
	newCaller, err := vfspath.Normalize(newPath)
	if err != nil {
		return err
	}
	oldResolved, err := v.realpath(ctx, cache, oldCaller)
	if err != nil {
		return err
	}
	newParentResolved, err := v.realpath(ctx, cache, vfspath.Dirname(newCaller))
	if err != nil {
		return err
	}
	newResolved := vfspath.Join(newParentResolved, pathBase(newCaller))

	oldRes, err := v.Table.Resolve(oldResolved)
	if err != nil {
		return err
	}
	newRes, err := v.Table.Resolve(newResolved)
	if err != nil {
		return err
	}
	if !oldRes.Backend.Exists(ctx, oldRes.Path) {
		return vfserr.New(vfserr.ENOENT, "rename", oldCaller)
	}

	oldParentRes, err := v.Table.Resolve(vfspath.Dirname(oldResolved))
	if err != nil {
		return err
	}
	if err := v.checkAccess(ctx, cache, oldParentRes, vfsmode.WOK, "rename", oldCaller); err != nil {
		return err
	}
	newParentRes, err := v.Table.Resolve(newParentResolved)
	if err != nil {
		return err
	}
	if err := v.checkAccess(ctx, cache, newParentRes, vfsmode.WOK, "rename", newCaller); err != nil {
		return err
	}

	if oldRes.Root == newRes.Root {
		if err := oldRes.Backend.Rename(ctx, oldRes.Path, newRes.Path); err != nil {
			return rewrite(err, oldRes, oldCaller)
		}
		v.emit("rename", oldCaller)
		v.emit("rename", newCaller)
		return nil
	}

	// Cross-backend: copy then unlink the source (spec.md §4.E).
	srcStats, err := oldRes.Backend.Stat(ctx, oldRes.Path)
	if err != nil {
		return rewrite(err, oldRes, oldCaller)
	}
	if srcStats.IsDir() {
		if err := v.Cp(ctx, oldCaller, newCaller, nil, true); err != nil {
			return err
		}
		if err := v.Rm(ctx, oldCaller, true, false); err != nil {
			return err
		}
	} else {
		if err := v.CopyFile(ctx, oldCaller, newCaller, false, true); err != nil {
			return err
		}
		if err := v.Unlink(ctx, oldCaller); err != nil {
			return err
		}
	}
	v.emit("rename", oldCaller)
	v.emit("rename", newCaller)
	return nil
}

// Link implements spec.md §4.H "link": a hard link. Cross-backend links are
// not possible and return EXDEV.
func (v *VFS) Link(ctx context.Context, target, linkPath string) error {
	cache := opcache.New()
	targetCaller, err := vfspath.Normalize(target)
	if err != nil {
		return err
	}
	linkCaller, err := vfspath.Normalize(linkPath)
	if err != nil {
		return err
	}
	targetResolved, err := v.realpath(ctx, cache, targetCaller)
	if err != nil {
		return err
	}
	linkParentResolved, err := v.realpath(ctx, cache, vfspath.Dirname(linkCaller))
	if err != nil {
		return err
	}
	linkResolved := vfspath.Join(linkParentResolved, pathBase(linkCaller))

	targetRes, err := v.Table.Resolve(targetResolved)
	if err != nil {
		return err
	}
	linkRes, err := v.Table.Resolve(linkResolved)
	if err != nil {
		return err
	}
	if targetRes.Root != linkRes.Root {
		return vfserr.New(vfserr.EXDEV, "link", linkCaller)
	}
	if linkRes.Backend.Exists(ctx, linkRes.Path) {
		return vfserr.New(vfserr.EEXIST, "link", linkCaller)
	}
	if err := v.checkAccess(ctx, cache, targetRes, vfsmode.ROK, "link", targetCaller); err != nil {
		return err
	}
	linkParentRes, err := v.Table.Resolve(linkParentResolved)
	if err != nil {
		return err
	}
	if err := v.checkAccess(ctx, cache, linkParentRes, vfsmode.WOK, "link", linkCaller); err != nil {
		return err
	}
	if err := targetRes.Backend.Link(ctx, targetRes.Path, linkRes.Path); err != nil {
		return rewrite(err, targetRes, targetCaller)
	}
	v.emit("rename", linkCaller)
	return nil
}

// SymlinkType classifies what a symlink points at, per spec.md §4.H's
// symlink(target, link_path, type) parameter. No concrete backend in this
// module special-cases any of these at the storage layer — a symlink is
// always a regular file carrying ModeSymlink regardless of what it
// targets — but an unrecognized value is still rejected with EINVAL.
type SymlinkType string

const (
	SymlinkFile     SymlinkType = "file"
	SymlinkDir      SymlinkType = "dir"
	SymlinkJunction SymlinkType = "junction"
)

func (t SymlinkType) valid() bool {
	return t == SymlinkFile || t == SymlinkDir || t == SymlinkJunction
}

// Symlink implements spec.md §4.H "symlink": the symlink body is written as
// the (UTF-8) target string, then the entry's type bit is set to
// ModeSymlink (spec data model: a symlink is a regular file distinguished
// purely by that mode bit).
func (v *VFS) Symlink(ctx context.Context, target, linkPath string, linkType SymlinkType) error {
	if target == "" {
		return vfserr.New(vfserr.EINVAL, "symlink", linkPath)
	}
	if !linkType.valid() {
		return vfserr.New(vfserr.EINVAL, "symlink", linkPath)
	}
	cache := opcache.New()
	linkCaller, err := vfspath.Normalize(linkPath)
	if err != nil {
		return err
	}
	if _, err := v.realpath(ctx, cache, linkCaller); err == nil {
		if _, statErr := v.Stat(ctx, linkCaller); statErr == nil {
			return vfserr.New(vfserr.EEXIST, "symlink", linkCaller)
		}
	}
	if err := v.WriteFile(ctx, linkCaller, []byte(target), "wx", 0o777); err != nil {
		return err
	}
	return v.Lchmod(ctx, linkCaller, 0o777|vfsmode.ModeSymlink)
}

// Readlink implements spec.md §4.H "readlink": returns a symlink's target
// string without following it.
func (v *VFS) Readlink(ctx context.Context, path string) (string, error) {
	cache := opcache.New()
	callerPath, err := vfspath.Normalize(path)
	if err != nil {
		return "", err
	}
	res, err := v.Table.Resolve(callerPath)
	if err != nil {
		return "", err
	}
	s, err := v.statCached(ctx, cache, res)
	if err != nil {
		return "", rewrite(err, res, callerPath)
	}
	if !s.IsSymlink() {
		return "", vfserr.New(vfserr.EINVAL, "readlink", callerPath)
	}
	// Read the symlink's own body, bypassing the usual symlink-following
	// open path: readlink must never resolve through the link it's
	// inspecting.
	fh, err := res.Backend.OpenFile(ctx, res.Path, vfsflags.Flags{Readable: true, MustExist: true})
	if err != nil {
		return "", rewrite(err, res, callerPath)
	}
	defer fh.Close()
	buf := make([]byte, s.Size)
	n, err := fh.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return "", rewrite(err, res, callerPath)
	}
	return string(buf[:n]), nil
}
