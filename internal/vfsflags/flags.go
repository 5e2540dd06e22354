// Package vfsflags translates open-mode strings or numeric flags (the
// Node-style "r", "r+", "w", "wx", ... vocabulary described in spec.md
// §4.C) into a capability record the dispatch layer can act on.
package vfsflags

import (
	"syscall"

	"github.com/vfscore/vfscore/internal/vfsmode"
	"github.com/vfscore/vfscore/vfserr"
)

// Flags is the capability record an open-mode string or numeric flag
// resolves to.
type Flags struct {
	Readable   bool
	Writable   bool
	Appendable bool
	Truncating bool
	Exclusive  bool
	MustExist  bool // true for flags that fail ENOENT against a missing file
}

// stringFlags enumerates the Node-style flag vocabulary. Table-driven,
// following the teacher's own style of building an Options record from a
// small declarative table (backend/http.Options, backend/local.Options are
// both populated from such tables via configstruct.Set).
var stringFlags = map[string]Flags{
	"r":   {Readable: true, MustExist: true},
	"r+":  {Readable: true, Writable: true, MustExist: true},
	"rs+": {Readable: true, Writable: true, MustExist: true},
	"w":   {Writable: true, Truncating: true},
	"w+":  {Readable: true, Writable: true, Truncating: true},
	"wx":  {Writable: true, Truncating: true, Exclusive: true},
	"wx+": {Readable: true, Writable: true, Truncating: true, Exclusive: true},
	"a":   {Writable: true, Appendable: true},
	"a+":  {Readable: true, Writable: true, Appendable: true},
	"ax":  {Writable: true, Appendable: true, Exclusive: true},
	"ax+": {Readable: true, Writable: true, Appendable: true, Exclusive: true},
}

// ParseString parses a Node-style flag string into a Flags record.
func ParseString(flag string) (Flags, error) {
	f, ok := stringFlags[flag]
	if !ok {
		return Flags{}, vfserr.New(vfserr.EINVAL, "open", flag)
	}
	return f, nil
}

// ParseInt parses an os.O_*-style numeric flag bitmask into a Flags record.
func ParseInt(flag int) (Flags, error) {
	var f Flags
	switch flag & (syscall.O_RDONLY | syscall.O_WRONLY | syscall.O_RDWR) {
	case syscall.O_RDONLY:
		f.Readable = true
	case syscall.O_WRONLY:
		f.Writable = true
	case syscall.O_RDWR:
		f.Readable = true
		f.Writable = true
	default:
		return Flags{}, vfserr.New(vfserr.EINVAL, "open", "")
	}
	if flag&syscall.O_APPEND != 0 {
		f.Appendable = true
	}
	if flag&syscall.O_TRUNC != 0 {
		f.Truncating = true
	}
	if flag&syscall.O_EXCL != 0 {
		f.Exclusive = true
	}
	if flag&syscall.O_CREAT == 0 {
		f.MustExist = true
	}
	return f, nil
}

// Mode returns the minimum access mode the caller must hold on the target
// for these flags.
func (f Flags) Mode() vfsmode.AccessMode {
	var m vfsmode.AccessMode
	if f.Readable {
		m |= vfsmode.ROK
	}
	if f.Writable {
		m |= vfsmode.WOK
	}
	return m
}
