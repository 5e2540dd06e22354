package vfs

import (
	"context"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfscore/vfscore/internal/memfs"
	"github.com/vfscore/vfscore/vfs/vfscommon"
	"github.com/vfscore/vfscore/vfserr"
)

func newTestVFS() *VFS {
	return New(memfs.New(), nil)
}

func newCheckedVFS() *VFS {
	opt := vfscommon.Options{CheckAccess: true, UID: 1000, GID: 1000, DirPerms: 0o755, FilePerms: 0o644}
	return New(memfs.New(), &opt)
}

func assertEACCES(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	errno, ok := vfserr.Errno(err)
	require.True(t, ok)
	assert.Equal(t, vfserr.EACCES, errno)
}

func TestMkdirDeniedWithoutParentWriteAccess(t *testing.T) {
	v := newCheckedVFS()
	ctx := context.Background()
	require.NoError(t, v.Mkdir(ctx, "/sub", 0o755))

	assertEACCES(t, v.Mkdir(ctx, "/sub/child", 0o755))
}

func TestRmdirDeniedWithoutWriteAccessOnSelf(t *testing.T) {
	v := newCheckedVFS()
	ctx := context.Background()
	require.NoError(t, v.Mkdir(ctx, "/sub", 0o755))

	assertEACCES(t, v.Rmdir(ctx, "/sub"))
}

func TestReaddirDeniedWithoutReadAccess(t *testing.T) {
	v := newCheckedVFS()
	ctx := context.Background()
	require.NoError(t, v.Mkdir(ctx, "/sub", 0o300))

	_, err := v.Readdir(ctx, "/sub", false, false)
	assertEACCES(t, err)
}

func TestWriteFileThenReadFileRoundTrip(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()

	require.NoError(t, v.WriteFile(ctx, "/a.txt", []byte("hello"), "w", 0o644))
	data, err := v.ReadFile(ctx, "/a.txt", "r")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestOpenThenFstatSizeMatchesStat(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.WriteFile(ctx, "/a.txt", []byte("hello world"), "w", 0o644))

	h, err := v.Open(ctx, "/a.txt", "r", 0, true)
	require.NoError(t, err)
	defer h.Close()

	hStat, err := h.Stat(ctx)
	require.NoError(t, err)
	pStat, err := v.Stat(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, pStat.Size, hStat.Size)
}

func TestOpenMissingWithoutCreateFlagIsENOENT(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	_, err := v.Open(ctx, "/missing.txt", "r", 0, true)
	require.Error(t, err)
	errno, ok := vfserr.Errno(err)
	require.True(t, ok)
	assert.Equal(t, vfserr.ENOENT, errno)
}

func TestOpenDirectoryWritableIsEISDIR(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.Mkdir(ctx, "/dir", 0o755))
	_, err := v.Open(ctx, "/dir", "w+", 0, true)
	require.Error(t, err)
	errno, ok := vfserr.Errno(err)
	require.True(t, ok)
	assert.Equal(t, vfserr.EISDIR, errno)
}

func TestAppendFileWritesAtEOF(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.WriteFile(ctx, "/a.txt", []byte("hello"), "w", 0o644))
	require.NoError(t, v.AppendFile(ctx, "/a.txt", []byte(" world"), "a", 0o644))

	data, err := v.ReadFile(ctx, "/a.txt", "r")
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestMkdirRecursiveCreatesOnlyMissingAncestors(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.Mkdir(ctx, "/a", 0o755))

	first, err := v.MkdirAll(ctx, "/a/b/c/d", 0o755)
	require.NoError(t, err)
	assert.Equal(t, "/a/b", first)

	for _, p := range []string{"/a/b", "/a/b/c", "/a/b/c/d"} {
		s, err := v.Stat(ctx, p)
		require.NoError(t, err)
		assert.True(t, s.IsDir())
	}
}

func TestRenameWithinBackend(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.WriteFile(ctx, "/a.txt", []byte("x"), "w", 0o644))

	require.NoError(t, v.Rename(ctx, "/a.txt", "/b.txt"))

	_, err := v.Stat(ctx, "/a.txt")
	assert.Error(t, err)
	_, err = v.Stat(ctx, "/b.txt")
	assert.NoError(t, err)
}

func TestRmdirRejectsNonEmpty(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.Mkdir(ctx, "/dir", 0o755))
	require.NoError(t, v.WriteFile(ctx, "/dir/f.txt", []byte("x"), "w", 0o644))

	assert.Error(t, v.Rmdir(ctx, "/dir"))
}

func TestRmRecursiveRemovesTree(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.Mkdir(ctx, "/dir", 0o755))
	require.NoError(t, v.WriteFile(ctx, "/dir/f.txt", []byte("x"), "w", 0o644))

	require.NoError(t, v.Rm(ctx, "/dir", true, false))
	_, err := v.Stat(ctx, "/dir")
	assert.Error(t, err)
}

func TestRmForceSwallowsENOENT(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	assert.NoError(t, v.Rm(ctx, "/missing", false, true))
}

func TestRmWithoutForceOnMissingErrors(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	assert.Error(t, v.Rm(ctx, "/missing", false, false))
}

func TestTruncateNegativeIsEINVAL(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.WriteFile(ctx, "/a.txt", []byte("hello"), "w", 0o644))
	err := v.Truncate(ctx, "/a.txt", -1)
	require.Error(t, err)
	errno, ok := vfserr.Errno(err)
	require.True(t, ok)
	assert.Equal(t, vfserr.EINVAL, errno)
}

func TestSymlinkAndReadlink(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.WriteFile(ctx, "/real.txt", []byte("hi"), "w", 0o644))
	require.NoError(t, v.Symlink(ctx, "/real.txt", "/link.txt", SymlinkFile))

	target, err := v.Readlink(ctx, "/link.txt")
	require.NoError(t, err)
	assert.Equal(t, "/real.txt", target)

	data, err := v.ReadFile(ctx, "/link.txt", "r")
	require.NoError(t, err)
	assert.Equal(t, "hi", string(data))
}

func TestSymlinkInvalidTypeIsEINVAL(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.WriteFile(ctx, "/real.txt", []byte("hi"), "w", 0o644))
	err := v.Symlink(ctx, "/real.txt", "/link.txt", SymlinkType("bogus"))
	require.Error(t, err)
	errno, ok := vfserr.Errno(err)
	require.True(t, ok)
	assert.Equal(t, vfserr.EINVAL, errno)
}

func TestCopyFileAndCp(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.Mkdir(ctx, "/src", 0o755))
	require.NoError(t, v.WriteFile(ctx, "/src/a.txt", []byte("a"), "w", 0o644))
	require.NoError(t, v.Mkdir(ctx, "/src/sub", 0o755))
	require.NoError(t, v.WriteFile(ctx, "/src/sub/b.txt", []byte("b"), "w", 0o644))

	require.NoError(t, v.Cp(ctx, "/src", "/dst", nil, false))

	data, err := v.ReadFile(ctx, "/dst/a.txt", "r")
	require.NoError(t, err)
	assert.Equal(t, "a", string(data))

	data, err = v.ReadFile(ctx, "/dst/sub/b.txt", "r")
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}

func TestReaddirRecursive(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.Mkdir(ctx, "/dir", 0o755))
	require.NoError(t, v.WriteFile(ctx, "/dir/a.txt", []byte("a"), "w", 0o644))
	require.NoError(t, v.Mkdir(ctx, "/dir/sub", 0o755))
	require.NoError(t, v.WriteFile(ctx, "/dir/sub/b.txt", []byte("b"), "w", 0o644))

	entries, err := v.Readdir(ctx, "/dir", true, true)
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["a.txt"])
	assert.True(t, names["sub"])
	assert.True(t, names["sub/b.txt"])
}

func TestReaddirEntryNamesExactSet(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.WriteFile(ctx, "/a.txt", []byte("a"), "w", 0o644))
	require.NoError(t, v.WriteFile(ctx, "/b.txt", []byte("b"), "w", 0o644))
	require.NoError(t, v.Mkdir(ctx, "/sub", 0o755))

	entries, err := v.Readdir(ctx, "/", false, false)
	require.NoError(t, err)

	got := make([]string, len(entries))
	for i, e := range entries {
		got[i] = e.Name
	}
	sort.Strings(got)
	want := []string{"a.txt", "b.txt", "sub"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("readdir entry names mismatch (-want +got):\n%s", diff)
	}
}

func TestStatIgnoringTimestamps(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.WriteFile(ctx, "/a.txt", []byte("hello"), "w", 0o644))
	require.NoError(t, v.WriteFile(ctx, "/b.txt", []byte("hello"), "w", 0o644))

	sa, err := v.Stat(ctx, "/a.txt")
	require.NoError(t, err)
	sb, err := v.Stat(ctx, "/b.txt")
	require.NoError(t, err)

	if diff := cmp.Diff(sa, sb, cmpopts.IgnoreFields(sa, "Atime", "Mtime", "Ctime")); diff != "" {
		t.Errorf("stats of equally-sized files should match apart from timestamps (-a +b):\n%s", diff)
	}
}

func TestReadvWritev(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	h, err := v.Open(ctx, "/a.txt", "w+", 0o644, true)
	require.NoError(t, err)

	n, err := h.Writev(ctx, [][]byte{[]byte("foo"), []byte("bar")})
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	require.NoError(t, h.Close())

	h, err = v.Open(ctx, "/a.txt", "r", 0, true)
	require.NoError(t, err)
	defer h.Close()

	b1 := make([]byte, 3)
	b2 := make([]byte, 3)
	n, err = h.Readv(ctx, [][]byte{b1, b2})
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)
	assert.Equal(t, "foo", string(b1))
	assert.Equal(t, "bar", string(b2))
}

func TestMkdtempCreatesUniqueDir(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.Mkdir(ctx, "/tmp", 0o755))

	p1, err := v.Mkdtemp(ctx, "/tmp/work-")
	require.NoError(t, err)
	p2, err := v.Mkdtemp(ctx, "/tmp/work-")
	require.NoError(t, err)
	assert.NotEqual(t, p1, p2)

	s, err := v.Stat(ctx, p1)
	require.NoError(t, err)
	assert.True(t, s.IsDir())
}

func TestOpendirIteratesEntries(t *testing.T) {
	v := newTestVFS()
	ctx := context.Background()
	require.NoError(t, v.WriteFile(ctx, "/a.txt", []byte("a"), "w", 0o644))
	require.NoError(t, v.WriteFile(ctx, "/b.txt", []byte("b"), "w", 0o644))

	d, err := v.Opendir(ctx, "/")
	require.NoError(t, err)
	defer d.Close()

	count := 0
	for {
		_, ok, err := d.Read()
		require.NoError(t, err)
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 2, count)
}

type recordingEmitter struct{ events []string }

func (r *recordingEmitter) Emit(event, path string) {
	r.events = append(r.events, event+":"+path)
}

func TestChangeEventsEmittedOnMutation(t *testing.T) {
	v := newTestVFS()
	rec := &recordingEmitter{}
	v.SetEmitter(rec)
	ctx := context.Background()

	require.NoError(t, v.WriteFile(ctx, "/a.txt", []byte("x"), "w", 0o644))
	assert.Contains(t, rec.events, "change:/a.txt")

	require.NoError(t, v.Mkdir(ctx, "/dir", 0o755))
	assert.Contains(t, rec.events, "rename:/dir")
}
