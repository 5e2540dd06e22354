package vfspath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"/a/b/c":     "/a/b/c",
		"a/b":        "/a/b",
		"/a/./b/../c": "/a/c",
		"//a//b//":   "/a/b",
		"/":          "/",
		"":           "",
	}
	for in, want := range cases {
		if in == "" {
			_, err := Normalize(in)
			assert.Error(t, err)
			continue
		}
		got, err := Normalize(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, p := range []string{"/a/b/c", "/a/./b/c", "a/b/c/"} {
		once, err := Normalize(p)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		assert.Equal(t, once, twice)
	}
}

func TestDirnameAndParse(t *testing.T) {
	assert.Equal(t, "/", Dirname("/"))
	assert.Equal(t, "/a", Dirname("/a/b"))

	dir, base := Parse("/a/b/c.txt")
	assert.Equal(t, "/a/b", dir)
	assert.Equal(t, "c.txt", base)

	dir, base = Parse("/")
	assert.Equal(t, "/", dir)
	assert.Equal(t, "", base)
}

func TestResolve(t *testing.T) {
	got, err := Resolve("/a/b", "c")
	require.NoError(t, err)
	assert.Equal(t, "/a/b/c", got)

	got, err = Resolve("/a/b", "/c")
	require.NoError(t, err)
	assert.Equal(t, "/c", got)

	_, err = Resolve("/a/b", "")
	assert.Error(t, err)
}

func TestIsRoot(t *testing.T) {
	assert.True(t, IsRoot("/"))
	assert.False(t, IsRoot("/a"))
}
