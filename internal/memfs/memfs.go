// Package memfs is a small in-memory, fully writable backend.Backend used
// by the dispatch layer's tests — the "writable backend" spec.md's §4
// end-to-end scenarios mount alongside the read-only reference backend.
// It is test-only scaffolding, grounded on the same inode-tree shape as
// backend/httpindex and avfs's orefafs in-memory filesystem.
package memfs

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vfscore/vfscore/backend"
	"github.com/vfscore/vfscore/internal/vfsflags"
	"github.com/vfscore/vfscore/internal/vfsmode"
	"github.com/vfscore/vfscore/internal/vfspath"
	"github.com/vfscore/vfscore/vfserr"
)

type node struct {
	mu       sync.Mutex
	mode     vfsmode.FileMode
	data     []byte
	children map[string]*node
	mtime    time.Time
	uid, gid uint32
}

func newDir(mode vfsmode.FileMode) *node {
	return &node{mode: vfsmode.ModeDir | mode, children: make(map[string]*node), mtime: time.Now()}
}

func newFile(mode vfsmode.FileMode) *node {
	return &node{mode: mode, mtime: time.Now()}
}

// Backend is an in-memory, fully mutable filesystem.
type Backend struct {
	mu   sync.Mutex
	root *node
}

// New returns an empty Backend with a root directory.
func New() *Backend {
	return &Backend{root: newDir(0o777)}
}

func (b *Backend) lookup(path string) (*node, error) {
	if vfspath.IsRoot(path) {
		return b.root, nil
	}
	cur := b.root
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		if cur.mode&vfsmode.ModeType != vfsmode.ModeDir {
			return nil, vfserr.New(vfserr.ENOTDIR, "stat", path)
		}
		next, ok := cur.children[name]
		if !ok {
			return nil, vfserr.New(vfserr.ENOENT, "stat", path)
		}
		cur = next
	}
	return cur, nil
}

func (b *Backend) parentAndName(path string) (*node, string, error) {
	dir, name := vfspath.Parse(path)
	parent, err := b.lookup(dir)
	if err != nil {
		return nil, "", err
	}
	return parent, name, nil
}

func (n *node) stats() vfsmode.Stats {
	return vfsmode.Stats{
		Mode:  n.mode,
		Size:  int64(len(n.data)),
		Mtime: n.mtime,
		Ctime: n.mtime,
		Atime: n.mtime,
		UID:   n.uid,
		GID:   n.gid,
	}
}

// Stat returns path's Stats.
func (b *Backend) Stat(ctx context.Context, path string) (vfsmode.Stats, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.lookup(path)
	if err != nil {
		return vfsmode.Stats{}, err
	}
	return n.stats(), nil
}

// Exists reports whether path is present.
func (b *Backend) Exists(ctx context.Context, path string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, err := b.lookup(path)
	return err == nil
}

// OpenFile opens an existing regular file.
func (b *Backend) OpenFile(ctx context.Context, path string, flags vfsflags.Flags) (backend.FileHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.lookup(path)
	if err != nil {
		return nil, err
	}
	if n.mode&vfsmode.ModeType == vfsmode.ModeDir {
		return nil, vfserr.New(vfserr.EISDIR, "open", path)
	}
	return &fileHandle{node: n}, nil
}

// CreateFile creates and opens a new regular file.
func (b *Backend) CreateFile(ctx context.Context, path string, flags vfsflags.Flags, mode vfsmode.FileMode) (backend.FileHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	parent, name, err := b.parentAndName(path)
	if err != nil {
		return nil, err
	}
	if _, ok := parent.children[name]; ok {
		return nil, vfserr.New(vfserr.EEXIST, "open", path)
	}
	n := newFile(mode &^ vfsmode.ModeType)
	parent.children[name] = n
	return &fileHandle{node: n}, nil
}

// Mkdir creates a new, empty directory.
func (b *Backend) Mkdir(ctx context.Context, path string, mode vfsmode.FileMode) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	parent, name, err := b.parentAndName(path)
	if err != nil {
		return err
	}
	if _, ok := parent.children[name]; ok {
		return vfserr.New(vfserr.EEXIST, "mkdir", path)
	}
	parent.children[name] = newDir(mode &^ vfsmode.ModeType)
	return nil
}

// Rmdir removes an empty directory.
func (b *Backend) Rmdir(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	parent, name, err := b.parentAndName(path)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		return vfserr.New(vfserr.ENOENT, "rmdir", path)
	}
	if n.mode&vfsmode.ModeType != vfsmode.ModeDir {
		return vfserr.New(vfserr.ENOTDIR, "rmdir", path)
	}
	if len(n.children) > 0 {
		return vfserr.New(vfserr.EINVAL, "rmdir", path)
	}
	delete(parent.children, name)
	return nil
}

// Unlink removes a non-directory entry.
func (b *Backend) Unlink(ctx context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	parent, name, err := b.parentAndName(path)
	if err != nil {
		return err
	}
	n, ok := parent.children[name]
	if !ok {
		return vfserr.New(vfserr.ENOENT, "unlink", path)
	}
	if n.mode&vfsmode.ModeType == vfsmode.ModeDir {
		return vfserr.New(vfserr.EISDIR, "unlink", path)
	}
	delete(parent.children, name)
	return nil
}

// Readdir lists a directory's children.
func (b *Backend) Readdir(ctx context.Context, path string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.lookup(path)
	if err != nil {
		return nil, err
	}
	if n.mode&vfsmode.ModeType != vfsmode.ModeDir {
		return nil, vfserr.New(vfserr.ENOTDIR, "readdir", path)
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	return names, nil
}

// Rename moves oldPath to newPath within this backend.
func (b *Backend) Rename(ctx context.Context, oldPath, newPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	oldParent, oldName, err := b.parentAndName(oldPath)
	if err != nil {
		return err
	}
	n, ok := oldParent.children[oldName]
	if !ok {
		return vfserr.New(vfserr.ENOENT, "rename", oldPath)
	}
	newParent, newName, err := b.parentAndName(newPath)
	if err != nil {
		return err
	}
	delete(oldParent.children, oldName)
	newParent.children[newName] = n
	return nil
}

// Link creates a hard link: both names reference the same node.
func (b *Backend) Link(ctx context.Context, target, linkPath string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := b.lookup(target)
	if err != nil {
		return err
	}
	parent, name, err := b.parentAndName(linkPath)
	if err != nil {
		return err
	}
	if _, ok := parent.children[name]; ok {
		return vfserr.New(vfserr.EEXIST, "link", linkPath)
	}
	parent.children[name] = n
	return nil
}

type fileHandle struct {
	mu   sync.Mutex
	node *node
}

func (h *fileHandle) ReadAt(p []byte, off int64) (int, error) {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()
	if off >= int64(len(h.node.data)) {
		return 0, nil
	}
	return copy(p, h.node.data[off:]), nil
}

func (h *fileHandle) WriteAt(p []byte, off int64) (int, error) {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()
	end := off + int64(len(p))
	if end > int64(len(h.node.data)) {
		grown := make([]byte, end)
		copy(grown, h.node.data)
		h.node.data = grown
	}
	n := copy(h.node.data[off:end], p)
	h.node.mtime = time.Now()
	return n, nil
}

func (h *fileHandle) Stat(ctx context.Context) (vfsmode.Stats, error) {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()
	return h.node.stats(), nil
}

func (h *fileHandle) Truncate(ctx context.Context, size int64) error {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()
	if size <= int64(len(h.node.data)) {
		h.node.data = h.node.data[:size]
		return nil
	}
	grown := make([]byte, size)
	copy(grown, h.node.data)
	h.node.data = grown
	return nil
}

// Chmod replaces h's permission bits, preserving its existing type bits
// (ModeDir and friends) — a directory chmod must not turn the node into
// what Stats.IsDir reports as a regular file. The one legitimate type-bit
// mutation, vfs.Symlink's Lchmod call, passes mode with ModeSymlink already
// set; since it controls both sides of that contract, an explicit type bit
// in mode is honored as a full replace instead of being masked away.
func (h *fileHandle) Chmod(ctx context.Context, mode vfsmode.FileMode) error {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()
	if mode.Type() == 0 {
		h.node.mode = h.node.mode&vfsmode.ModeType | mode.Perm()
	} else {
		h.node.mode = mode
	}
	return nil
}

func (h *fileHandle) Chown(ctx context.Context, uid, gid uint32) error {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()
	h.node.uid, h.node.gid = uid, gid
	return nil
}

func (h *fileHandle) Utimes(ctx context.Context, atime, mtime time.Time) error {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()
	h.node.mtime = mtime
	return nil
}

func (h *fileHandle) Sync() error     { return nil }
func (h *fileHandle) Datasync() error { return nil }
func (h *fileHandle) Close() error    { return nil }
