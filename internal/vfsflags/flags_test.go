package vfsflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vfscore/vfscore/internal/vfsmode"
)

func TestParseStringKnownFlags(t *testing.T) {
	f, err := ParseString("r")
	require.NoError(t, err)
	assert.True(t, f.Readable)
	assert.False(t, f.Writable)
	assert.True(t, f.MustExist)

	f, err = ParseString("w+")
	require.NoError(t, err)
	assert.True(t, f.Readable)
	assert.True(t, f.Writable)
	assert.True(t, f.Truncating)

	f, err = ParseString("ax")
	require.NoError(t, err)
	assert.True(t, f.Appendable)
	assert.True(t, f.Exclusive)
}

func TestParseStringUnknownFlag(t *testing.T) {
	_, err := ParseString("bogus")
	assert.Error(t, err)
}

func TestFlagsMode(t *testing.T) {
	f := Flags{Readable: true, Writable: true}
	assert.Equal(t, vfsmode.ROK|vfsmode.WOK, f.Mode())

	f = Flags{Readable: true}
	assert.Equal(t, vfsmode.ROK, f.Mode())
}
