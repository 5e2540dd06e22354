// Package vfsmode defines file-type/mode bits, access-check constants, and
// the Stats record shared by every backend and dispatch operation.
package vfsmode

import (
	"io/fs"
	"time"
)

// FileMode wraps io/fs.FileMode: avfs and every other pack example that
// defines POSIX-style mode bits builds directly on io/fs.FileMode rather
// than reinventing a parallel bit layout, and there is no benefit to
// diverging from that here.
type FileMode = fs.FileMode

// Type-discriminant bits, mirroring the S_IFMT family. ModeSymlink's own
// bit doubles as this VFS's S_IFLNK: a symlink is stored as a regular file
// whose body is its target, distinguished purely by this mode bit (spec
// data model, "Stats").
const (
	ModeDir     = fs.ModeDir
	ModeSymlink = fs.ModeSymlink
	ModeDevice  = fs.ModeDevice
	ModeCharDev = fs.ModeCharDevice
	ModeNamedPipe = fs.ModeNamedPipe
	ModeSocket  = fs.ModeSocket
	ModeType    = fs.ModeType // the S_IFMT-equivalent mask
	ModePerm    = fs.ModePerm
)

// Access-check bits, matching POSIX access(2).
type AccessMode uint8

const (
	FOK AccessMode = 0
	XOK AccessMode = 1 << 0
	WOK AccessMode = 1 << 1
	ROK AccessMode = 1 << 2
)

// Stats is the VFS's POSIX-style stat record.
type Stats struct {
	Mode  FileMode
	Size  int64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
	UID   uint32
	GID   uint32
	// Ino holds a synthesized inode number. No backend in this module
	// assigns one: Stats from memfs and httpindex always carry Ino 0.
	Ino uint64
}

// IsDir reports whether s describes a directory.
func (s Stats) IsDir() bool { return s.Mode&ModeType == ModeDir }

// IsSymlink reports whether s describes a symbolic link.
func (s Stats) IsSymlink() bool { return s.Mode&ModeSymlink != 0 }

// IsFile reports whether s describes a regular file (no type bits set).
func (s Stats) IsFile() bool { return s.Mode&ModeType == 0 && !s.IsSymlink() }

// Context carries the caller identity and access-check configuration,
// replacing the "this"-bound context of the source language (spec §9).
type Context struct {
	UID         uint32
	GID         uint32
	CheckAccess bool
}

// HasAccess reports whether ctx may access a file with the given mode and
// ownership under the requested AccessMode. When ctx.CheckAccess is false
// (the global gate described in spec §4.B) every access is permitted.
func HasAccess(mode FileMode, fileUID, fileGID uint32, ctx Context, want AccessMode) bool {
	if !ctx.CheckAccess {
		return true
	}
	perm := uint32(mode.Perm())
	var shift uint
	switch {
	case ctx.UID == fileUID:
		shift = 6
	case ctx.GID == fileGID:
		shift = 3
	default:
		shift = 0
	}
	bits := (perm >> shift) & 0o7
	need := uint32(0)
	if want&ROK != 0 {
		need |= 0o4
	}
	if want&WOK != 0 {
		need |= 0o2
	}
	if want&XOK != 0 {
		need |= 0o1
	}
	return bits&need == need
}
