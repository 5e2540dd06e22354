// Package vfscommon holds the VFS's Options record: the small,
// non-file-loaded configuration object every dispatch call is built
// against (spec.md §4.M). Loading these from a file or the environment is
// the "configuration loading" collaborator spec.md §1 excludes; the
// struct itself is in scope.
package vfscommon

import "github.com/vfscore/vfscore/internal/vfsmode"

// Options configures a VFS instance.
type Options struct {
	// CheckAccess globally gates has_access (spec.md §4.B). When false,
	// every access check passes.
	CheckAccess bool
	// DirPerms/FilePerms are the default permission bits applied when a
	// caller doesn't specify mode bits explicitly.
	DirPerms  vfsmode.FileMode
	FilePerms vfsmode.FileMode
	// UID/GID identify the synthesized root caller used for every
	// access check; there is no per-call override.
	UID, GID uint32
}

// Default returns the VFS's default Options: access checking off (so a
// freshly constructed VFS behaves permissively until a caller opts in),
// matching the common default across the Unix filesystem packages in the
// corpus of treating access control as an optional, explicitly enabled
// layer rather than an always-on one.
func Default() Options {
	return Options{
		CheckAccess: false,
		DirPerms:    0o777,
		FilePerms:   0o666,
	}
}

// Context builds a vfsmode.Context from these Options, for the root caller.
func (o Options) Context() vfsmode.Context {
	return vfsmode.Context{UID: o.UID, GID: o.GID, CheckAccess: o.CheckAccess}
}
