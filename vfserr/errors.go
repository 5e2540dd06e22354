// Package vfserr defines the structured error taxonomy used throughout the
// VFS: POSIX errno codes wrapped with the syscall name and the path the
// caller passed in, so callers never see backend-internal paths.
package vfserr

import (
	"fmt"
	"syscall"

	"github.com/pkg/errors"
)

// POSIX errno values used by the dispatch surface. These alias the standard
// library's syscall.Errno rather than defining a parallel set, matching the
// convention every POSIX-flavored filesystem package in the corpus follows.
const (
	ENOENT  = syscall.ENOENT
	EEXIST  = syscall.EEXIST
	EISDIR  = syscall.EISDIR
	ENOTDIR = syscall.ENOTDIR
	EACCES  = syscall.EACCES
	EPERM   = syscall.EPERM
	EINVAL  = syscall.EINVAL
	EBADF   = syscall.EBADF
	EXDEV   = syscall.EXDEV
	EIO     = syscall.EIO
	ELOOP   = syscall.ELOOP
)

// Error is a structured filesystem error: an errno, the syscall that raised
// it, the caller-visible path, and an optional human-readable message.
type Error struct {
	Errno   syscall.Errno
	Syscall string
	Path    string
	Message string
}

// New constructs an Error for the given syscall name and caller-visible path.
func New(errno syscall.Errno, syscallName, path string) *Error {
	return &Error{Errno: errno, Syscall: syscallName, Path: path}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Errno.Error()
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %s", e.Syscall, msg)
	}
	return fmt.Sprintf("%s '%s': %s", e.Syscall, e.Path, msg)
}

// Unwrap exposes the underlying syscall.Errno so errors.Is(err, vfserr.ENOENT)
// keeps working through any github.com/pkg/errors wrapping layered on top.
func (e *Error) Unwrap() error {
	return e.Errno
}

// Is reports whether target is the same errno, independent of path/syscall.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Errno == other.Errno
	}
	return e.Errno == target
}

// Errno extracts the syscall.Errno carried by err, if any, by walking the
// wrap/cause chain (both the standard errors.Unwrap chain and
// github.com/pkg/errors' Cause chain are honored).
func Errno(err error) (syscall.Errno, bool) {
	for err != nil {
		var e *Error
		if errors.As(err, &e) {
			return e.Errno, true
		}
		var errno syscall.Errno
		if errors.As(err, &errno) {
			return errno, true
		}
		cause := errors.Cause(err)
		if cause == err {
			return 0, false
		}
		err = cause
	}
	return 0, false
}

// WithPath rewrites the caller-visible path on err, if err carries a
// structured *Error somewhere in its chain. It is used at dispatch
// boundaries to translate a backend-relative path back into the path the
// caller originally supplied, using the lookup table built at call entry.
func WithPath(err error, rewrite map[string]string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	if newPath, ok := rewrite[e.Path]; ok {
		rewritten := *e
		rewritten.Path = newPath
		return errors.WithStack(&rewritten)
	}
	return err
}
