package httpindex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfscore/vfscore/internal/vfsflags"
	"github.com/vfscore/vfscore/vfserr"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	index := map[string]any{
		"a.txt": nil,
		"d": map[string]any{
			"b.txt": nil,
		},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/index.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(index)
	})
	mux.HandleFunc("/files/a.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})
	mux.HandleFunc("/files/d/b.txt", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("nested"))
	})
	return httptest.NewServer(mux)
}

func TestStatAndReadFile(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	ctx := context.Background()

	b, err := New(ctx, srv.URL+"/index.json", srv.URL+"/files/")
	require.NoError(t, err)

	s, err := b.Stat(ctx, "/a.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), s.Size)

	fh, err := b.OpenFile(ctx, "/a.txt", vfsflags.Flags{Readable: true, MustExist: true})
	require.NoError(t, err)
	defer fh.Close()

	buf := make([]byte, 5)
	n, err := fh.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestReaddir(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	ctx := context.Background()

	b, err := New(ctx, srv.URL+"/index.json", srv.URL+"/files/")
	require.NoError(t, err)

	names, err := b.Readdir(ctx, "/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a.txt", "d"}, names)
}

func TestOpenWritableIsEPERM(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	ctx := context.Background()
	b, err := New(ctx, srv.URL+"/index.json", srv.URL+"/files/")
	require.NoError(t, err)

	_, err = b.OpenFile(ctx, "/a.txt", vfsflags.Flags{Writable: true})
	require.Error(t, err)
	errno, ok := vfserr.Errno(err)
	require.True(t, ok)
	assert.Equal(t, vfserr.EPERM, errno)
}

func TestOpenDirectoryIsEISDIR(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	ctx := context.Background()
	b, err := New(ctx, srv.URL+"/index.json", srv.URL+"/files/")
	require.NoError(t, err)

	_, err = b.OpenFile(ctx, "/d", vfsflags.Flags{Readable: true, MustExist: true})
	require.Error(t, err)
	errno, ok := vfserr.Errno(err)
	require.True(t, ok)
	assert.Equal(t, vfserr.EISDIR, errno)
}

func TestPreloadFileAvoidsHTTPFetch(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	ctx := context.Background()
	b, err := New(ctx, srv.URL+"/index.json", srv.URL+"/files/")
	require.NoError(t, err)

	require.NoError(t, b.PreloadFile("/a.txt", []byte("preloaded")))
	fh, err := b.OpenFile(ctx, "/a.txt", vfsflags.Flags{Readable: true, MustExist: true})
	require.NoError(t, err)
	defer fh.Close()

	buf := make([]byte, 9)
	n, err := fh.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "preloaded", string(buf[:n]))
}

func TestEmptyReleasesCachedBodies(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	ctx := context.Background()
	b, err := New(ctx, srv.URL+"/index.json", srv.URL+"/files/")
	require.NoError(t, err)

	_, err = b.OpenFile(ctx, "/a.txt", vfsflags.Flags{Readable: true, MustExist: true})
	require.NoError(t, err)
	b.Empty()

	n, ok := b.root.children["a.txt"]
	require.True(t, ok)
	assert.Nil(t, n.fileData)
}

func TestOpenAsyncDeliversBody(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	ctx := context.Background()
	b, err := New(ctx, srv.URL+"/index.json", srv.URL+"/files/")
	require.NoError(t, err)

	ch, err := b.OpenAsync(ctx, "/d/b.txt")
	require.NoError(t, err)
	res := <-ch
	require.NoError(t, res.Err)
	require.NotNil(t, res.Handle)
	defer res.Handle.Close()

	buf := make([]byte, 6)
	n, err := res.Handle.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "nested", string(buf[:n]))
}

func TestExistsAndENOENT(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()
	ctx := context.Background()
	b, err := New(ctx, srv.URL+"/index.json", srv.URL+"/files/")
	require.NoError(t, err)

	assert.True(t, b.Exists(ctx, "/a.txt"))
	assert.False(t, b.Exists(ctx, "/missing.txt"))

	_, err = b.Stat(ctx, "/missing.txt")
	require.Error(t, err)
	errno, ok := vfserr.Errno(err)
	require.True(t, ok)
	assert.Equal(t, vfserr.ENOENT, errno)
}
