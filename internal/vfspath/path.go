// Package vfspath implements POSIX-style, forward-slash path manipulation
// for the VFS. It deliberately uses the standard library's "path" package
// rather than "path/filepath": VFS paths are not OS paths, and filepath's
// separator-awareness would be wrong on non-Unix build hosts.
package vfspath

import (
	"strings"

	stdpath "path"

	"github.com/vfscore/vfscore/vfserr"
)

// Normalize converts p into absolute, canonical POSIX form: forward
// slashes, no "." or ".." components, a leading slash, and no trailing
// slash unless the result is the root.
func Normalize(p string) (string, error) {
	if p == "" {
		return "", vfserr.New(vfserr.EINVAL, "normalize", p)
	}
	p = strings.ReplaceAll(p, "\\", "/")
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	clean := stdpath.Clean(p)
	if clean == "." {
		clean = "/"
	}
	return clean, nil
}

// Join joins path elements into a single normalized path.
func Join(elem ...string) string {
	return stdpath.Join(elem...)
}

// Dirname returns the directory portion of p (everything but the final
// component), normalized. Dirname("/") is "/".
func Dirname(p string) string {
	dir := stdpath.Dir(p)
	if dir == "." {
		return "/"
	}
	return dir
}

// Parse splits p into its directory and base name, POSIX style.
func Parse(p string) (dir, base string) {
	dir = Dirname(p)
	base = stdpath.Base(p)
	if base == "." || base == "/" {
		base = ""
	}
	return dir, base
}

// Resolve resolves rel against base. If rel is already absolute it is
// returned normalized; otherwise it is joined onto base.
func Resolve(base, rel string) (string, error) {
	if rel == "" {
		return "", vfserr.New(vfserr.EINVAL, "resolve", rel)
	}
	if strings.HasPrefix(rel, "/") {
		return Normalize(rel)
	}
	return Normalize(stdpath.Join(base, rel))
}

// IsRoot reports whether p is the filesystem root.
func IsRoot(p string) bool {
	return p == "/"
}
