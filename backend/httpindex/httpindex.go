// Package httpindex implements the reference backend described in
// spec.md §4.I: a read-only filesystem built from a JSON directory
// listing, with file bodies lazily fetched over HTTP and cached in
// memory. Modeled on rclone's backend/http (an HTTP endpoint treated as a
// read-only Fs) and avfs's orefafs node-tree shape, grounded here
// because rclone's own http.go and avfs's orefafs.go files survived
// retrieval while rclone's core vfs/fs packages did not.
package httpindex

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/vfscore/vfscore/backend"
	"github.com/vfscore/vfscore/internal/vfsflags"
	"github.com/vfscore/vfscore/internal/vfslog"
	"github.com/vfscore/vfscore/internal/vfsmode"
	"github.com/vfscore/vfscore/internal/vfspath"
	"github.com/vfscore/vfscore/vfserr"
)

// listing is the wire shape of the index JSON (spec.md §6): directory
// names map to nested objects; file names map to null.
type listing map[string]json.RawMessage

// inode is one node of the in-memory index tree.
type inode struct {
	mu       sync.Mutex
	isDir    bool
	children map[string]*inode // directory children, by name
	size     int64             // -1 until learned via stat/open (file only)
	fileData []byte            // nil until open()/preload_file() populates it
	mtime    time.Time
}

// Backend is the reference read-only, HTTP-indexed backend.
type Backend struct {
	prefixURL string
	client    *http.Client
	root      *inode
}

// New constructs a Backend by synchronously fetching listingURL as JSON
// and building the in-memory inode tree (spec.md §4.I construction).
// A non-empty prefixURL is normalized to end in "/"; an empty one is
// kept empty.
func New(ctx context.Context, listingURL, prefixURL string) (*Backend, error) {
	if prefixURL != "" && !strings.HasSuffix(prefixURL, "/") {
		prefixURL += "/"
	}
	b := &Backend{
		prefixURL: prefixURL,
		client:    http.DefaultClient,
		root:      &inode{isDir: true, children: make(map[string]*inode)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listingURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "httpindex: building listing request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "httpindex: fetching listing")
	}
	defer resp.Body.Close()

	var top listing
	if err := json.NewDecoder(resp.Body).Decode(&top); err != nil {
		return nil, errors.Wrap(err, "httpindex: decoding listing")
	}
	if err := buildTree(b.root, top); err != nil {
		return nil, err
	}
	return b, nil
}

func buildTree(dir *inode, l listing) error {
	for name, raw := range l {
		s := string(raw)
		if s == "null" {
			dir.children[name] = &inode{size: -1}
			continue
		}
		var sub listing
		if err := json.Unmarshal(raw, &sub); err != nil {
			return errors.Wrapf(err, "httpindex: decoding entry %q", name)
		}
		child := &inode{isDir: true, children: make(map[string]*inode)}
		if err := buildTree(child, sub); err != nil {
			return err
		}
		dir.children[name] = child
	}
	return nil
}

func (b *Backend) lookup(path string) (*inode, error) {
	if vfspath.IsRoot(path) {
		return b.root, nil
	}
	cur := b.root
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		if !cur.isDir {
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

func (b *Backend) statsOf(n *inode) vfsmode.Stats {
	mode := vfsmode.FileMode(0o444)
	if n.isDir {
		mode = vfsmode.ModeDir | 0o555
	}
	size := n.size
	if size < 0 {
		size = 0
	}
	return vfsmode.Stats{
		Mode:  mode,
		Size:  size,
		Mtime: n.mtime,
		Ctime: n.mtime,
		Atime: n.mtime,
	}
}

// Stat implements spec.md §4.I "stat": learns a file's size via a blocking
// HEAD request the first time it's observed.
func (b *Backend) Stat(ctx context.Context, path string) (vfsmode.Stats, error) {
	n, err := b.lookup(path)
	if err != nil {
		return vfsmode.Stats{}, err
	}
	if !n.isDir {
		n.mu.Lock()
		if n.size < 0 {
			size, err := b.headSize(ctx, path)
			if err != nil {
				n.mu.Unlock()
				return vfsmode.Stats{}, err
			}
			n.size = size
		}
		n.mu.Unlock()
	}
	return b.statsOf(n), nil
}

func (b *Backend) headSize(ctx context.Context, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, b.bodyURL(path), nil)
	if err != nil {
		return 0, errors.Wrap(err, "httpindex: building HEAD request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		vfslog.BackendError("stat", path, err)
		return 0, vfserr.New(vfserr.EIO, "stat", path)
	}
	defer resp.Body.Close()
	return resp.ContentLength, nil
}

func (b *Backend) bodyURL(path string) string {
	rel := strings.TrimPrefix(path, "/")
	return b.prefixURL + rel
}

// Readdir implements spec.md §4.I "readdir": requires a directory inode.
func (b *Backend) Readdir(ctx context.Context, path string) ([]string, error) {
	n, err := b.lookup(path)
	if err != nil {
		return nil, err
	}
	if !n.isDir {
		return nil, vfserr.New(vfserr.ENOTDIR, "readdir", path)
	}
	names := make([]string, 0, len(n.children))
	for name := range n.children {
		names = append(names, name)
	}
	return names, nil
}

// Exists reports whether path is present in the index.
func (b *Backend) Exists(ctx context.Context, path string) bool {
	_, err := b.lookup(path)
	return err == nil
}

// OpenFile implements spec.md §4.I "open": writable flags are EPERM;
// directories are EISDIR; exclusive/truncate flags are EEXIST because the
// entry already exists in the index. Bodies are fetched lazily on first
// open.
func (b *Backend) OpenFile(ctx context.Context, path string, flags vfsflags.Flags) (backend.FileHandle, error) {
	n, err := b.lookup(path)
	if err != nil {
		return nil, err
	}
	if flags.Writable {
		return nil, vfserr.New(vfserr.EPERM, "open", path)
	}
	if n.isDir {
		return nil, vfserr.New(vfserr.EISDIR, "open", path)
	}
	if flags.Exclusive || flags.Truncating {
		return nil, vfserr.New(vfserr.EEXIST, "open", path)
	}
	if err := b.ensureResident(ctx, path, n); err != nil {
		return nil, err
	}
	return &fileHandle{path: path, node: n}, nil
}

// CreateFile always fails with EPERM: the index is read-only. The dispatch
// layer calls it when a writable open targets a path that is absent from
// the index.
func (b *Backend) CreateFile(ctx context.Context, path string, flags vfsflags.Flags, mode vfsmode.FileMode) (backend.FileHandle, error) {
	return nil, vfserr.New(vfserr.EPERM, "open", path)
}

func (b *Backend) ensureResident(ctx context.Context, path string, n *inode) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fileData != nil {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.bodyURL(path), nil)
	if err != nil {
		return errors.Wrap(err, "httpindex: building GET request")
	}
	resp, err := b.client.Do(req)
	if err != nil {
		vfslog.BackendError("open", path, err)
		return vfserr.New(vfserr.EIO, "open", path)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return vfserr.New(vfserr.EIO, "open", path)
	}
	n.fileData = data
	n.size = int64(len(n.fileData))
	n.mtime = time.Now()
	return nil
}

// PreloadFile implements spec.md §4.I "preload_file": populates an
// inode's body without an HTTP round trip.
func (b *Backend) PreloadFile(path string, data []byte) error {
	n, err := b.lookup(path)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.fileData = append([]byte(nil), data...)
	n.size = int64(len(data))
	n.mtime = time.Now()
	return nil
}

// Empty implements spec.md §4.I "empty": releases every cached file body,
// returning each inode to its "sized" (or "listed") state while the index
// itself is kept.
func (b *Backend) Empty() {
	var walk func(*inode)
	walk = func(n *inode) {
		n.mu.Lock()
		if !n.isDir {
			n.fileData = nil
		}
		n.mu.Unlock()
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(b.root)
	logrus.Debug("httpindex: cache emptied")
}

// Mkdir, Rmdir, Unlink, Rename and Link are all mutating operations; the
// reference backend is read-only (spec.md §4.I capability flags).
func (b *Backend) Mkdir(ctx context.Context, path string, mode vfsmode.FileMode) error {
	return vfserr.New(vfserr.EPERM, "mkdir", path)
}

func (b *Backend) Rmdir(ctx context.Context, path string) error {
	return vfserr.New(vfserr.EPERM, "rmdir", path)
}

func (b *Backend) Unlink(ctx context.Context, path string) error {
	return vfserr.New(vfserr.EPERM, "unlink", path)
}

func (b *Backend) Rename(ctx context.Context, oldPath, newPath string) error {
	return vfserr.New(vfserr.EPERM, "rename", oldPath)
}

func (b *Backend) Link(ctx context.Context, target, linkPath string) error {
	return vfserr.New(vfserr.EPERM, "link", linkPath)
}

// fileHandle is a resident, fully-buffered read-only file.
type fileHandle struct {
	path string
	node *inode
}

func (h *fileHandle) ReadAt(p []byte, off int64) (int, error) {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()
	if off >= int64(len(h.node.fileData)) {
		return 0, nil
	}
	n := copy(p, h.node.fileData[off:])
	return n, nil
}

func (h *fileHandle) WriteAt(p []byte, off int64) (int, error) {
	return 0, vfserr.New(vfserr.EPERM, "write", h.path)
}

func (h *fileHandle) Stat(ctx context.Context) (vfsmode.Stats, error) {
	h.node.mu.Lock()
	defer h.node.mu.Unlock()
	return vfsmode.Stats{Mode: 0o444, Size: int64(len(h.node.fileData)), Mtime: h.node.mtime}, nil
}

func (h *fileHandle) Truncate(ctx context.Context, size int64) error {
	return vfserr.New(vfserr.EPERM, "truncate", h.path)
}

func (h *fileHandle) Chmod(ctx context.Context, mode vfsmode.FileMode) error {
	return vfserr.New(vfserr.EPERM, "chmod", h.path)
}

func (h *fileHandle) Chown(ctx context.Context, uid, gid uint32) error {
	return vfserr.New(vfserr.EPERM, "chown", h.path)
}

func (h *fileHandle) Utimes(ctx context.Context, atime, mtime time.Time) error {
	return vfserr.New(vfserr.EPERM, "utimes", h.path)
}

func (h *fileHandle) Sync() error     { return nil }
func (h *fileHandle) Datasync() error { return nil }
func (h *fileHandle) Close() error    { return nil }

// AsyncResult is the payload delivered by OpenAsync.
type AsyncResult struct {
	Handle backend.FileHandle
	Err    error
}

// OpenAsync implements spec.md §4.N: a genuine asynchronous fork of
// OpenFile, not a thin wrapper — it runs the blocking GET on its own
// goroutine and delivers the result over a channel, so a caller can
// dispatch several lazy fetches concurrently instead of stalling the
// single-threaded cooperative model's caller (spec.md §5, §9).
func (b *Backend) OpenAsync(ctx context.Context, path string) (<-chan AsyncResult, error) {
	n, err := b.lookup(path)
	if err != nil {
		return nil, err
	}
	if n.isDir {
		return nil, vfserr.New(vfserr.EISDIR, "open", path)
	}
	ch := make(chan AsyncResult, 1)
	go func() {
		err := b.ensureResident(ctx, path, n)
		if err != nil {
			ch <- AsyncResult{Err: err}
			return
		}
		ch <- AsyncResult{Handle: &fileHandle{path: path, node: n}}
	}()
	return ch, nil
}

