// Package fdtable implements the process-wide integer file-descriptor
// table: allocation of the smallest unused positive fd, lookup, and
// exactly-once retirement on close.
package fdtable

import (
	"sync"

	"github.com/vfscore/vfscore/vfserr"
)

// Handle is anything a file descriptor can be bound to.
type Handle interface {
	Close() error
}

// Table is a process-wide mutable mapping of fd -> Handle. Operations are
// assumed atomic at the dispatch granularity (spec §5, "Shared resources"),
// so a single mutex guards the whole table, matching the plain
// mutex-guarded table every pack example uses for equivalent process-wide
// state (there is no concurrent-map library pulled in anywhere in the
// corpus for this kind of small, contended-but-brief table).
type Table struct {
	mu   sync.Mutex
	byFD map[uint32]Handle
}

// New returns an empty FD table.
func New() *Table {
	return &Table{byFD: make(map[uint32]Handle)}
}

// Open allocates the smallest unused positive fd for h and returns it.
func (t *Table) Open(h Handle) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var fd uint32 = 1
	for {
		if _, taken := t.byFD[fd]; !taken {
			break
		}
		fd++
	}
	t.byFD[fd] = h
	return fd
}

// Get returns the handle bound to fd, or EBADF if fd is unissued or
// retired.
func (t *Table) Get(fd uint32) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.byFD[fd]
	if !ok {
		return nil, vfserr.New(vfserr.EBADF, "fstat", "")
	}
	return h, nil
}

// CloseSync closes the handle bound to fd and removes it from the table.
// A double-close fails with EBADF, and a close that fails on the backend
// still removes the fd (the descriptor is gone either way).
func (t *Table) CloseSync(fd uint32) error {
	t.mu.Lock()
	h, ok := t.byFD[fd]
	if ok {
		delete(t.byFD, fd)
	}
	t.mu.Unlock()
	if !ok {
		return vfserr.New(vfserr.EBADF, "close", "")
	}
	return h.Close()
}

// Len reports how many descriptors are currently open, for tests.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byFD)
}
