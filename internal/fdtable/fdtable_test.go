package fdtable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closeCounter struct{ closed int }

func (c *closeCounter) Close() error {
	c.closed++
	return nil
}

func TestOpenAllocatesSmallestUnusedFD(t *testing.T) {
	tbl := New()
	h1 := &closeCounter{}
	h2 := &closeCounter{}
	h3 := &closeCounter{}

	fd1 := tbl.Open(h1)
	fd2 := tbl.Open(h2)
	assert.Equal(t, uint32(1), fd1)
	assert.Equal(t, uint32(2), fd2)

	require.NoError(t, tbl.CloseSync(fd1))
	assert.Equal(t, 1, h1.closed)

	fd3 := tbl.Open(h3)
	assert.Equal(t, uint32(1), fd3, "fd 1 must be reused once freed")
	_ = fd2
}

func TestGetUnissuedFD(t *testing.T) {
	tbl := New()
	_, err := tbl.Get(99)
	assert.Error(t, err)
}

func TestDoubleCloseFails(t *testing.T) {
	tbl := New()
	fd := tbl.Open(&closeCounter{})
	require.NoError(t, tbl.CloseSync(fd))
	assert.Error(t, tbl.CloseSync(fd))
}

func TestLen(t *testing.T) {
	tbl := New()
	assert.Equal(t, 0, tbl.Len())
	tbl.Open(&closeCounter{})
	tbl.Open(&closeCounter{})
	assert.Equal(t, 2, tbl.Len())
}
