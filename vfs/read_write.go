package vfs

import (
	"context"
	"io"
	"unicode/utf8"

	"github.com/vfscore/vfscore/internal/opcache"
	"github.com/vfscore/vfscore/internal/vfsflags"
	"github.com/vfscore/vfscore/internal/vfsmode"
	"github.com/vfscore/vfscore/vfserr"
)

// Read reads from h at its current position, advancing it by the number of
// bytes read.
func (h *Handle) Read(ctx context.Context, p []byte) (int, error) {
	fh, err := h.vfs.lookupHandle(h.FD)
	if err != nil {
		return 0, err
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if !fh.flags.Readable {
		return 0, vfserr.New(vfserr.EACCES, "read", fh.path)
	}
	n, err := fh.backend.ReadAt(p, fh.position)
	fh.position += int64(n)
	return n, err
}

// Write writes to h at its current position, advancing it by the number of
// bytes written.
func (h *Handle) Write(ctx context.Context, p []byte) (int, error) {
	fh, err := h.vfs.lookupHandle(h.FD)
	if err != nil {
		return 0, err
	}
	fh.mu.Lock()
	defer fh.mu.Unlock()
	if !fh.flags.Writable {
		return 0, vfserr.New(vfserr.EACCES, "write", fh.path)
	}
	n, err := fh.backend.WriteAt(p, fh.position)
	fh.position += int64(n)
	return n, err
}

// Stat returns the handle's current Stats, matching the invariant that
// fstat(file_to_fd(h)).size == stat(p).size immediately after open
// (spec.md §8).
func (h *Handle) Stat(ctx context.Context) (vfsmode.Stats, error) {
	fh, err := h.vfs.lookupHandle(h.FD)
	if err != nil {
		return vfsmode.Stats{}, err
	}
	return fh.backend.Stat(ctx)
}

// ReadFile implements spec.md §4.H "read_file": open, stat, allocate a
// buffer of stat.size, read once from offset 0, close.
func (v *VFS) ReadFile(ctx context.Context, path string, flag string) ([]byte, error) {
	if flag == "" {
		flag = "r"
	}
	flags, err := vfsflags.ParseString(flag)
	if err != nil {
		return nil, err
	}
	if !flags.Readable {
		return nil, vfserr.New(vfserr.EINVAL, "read_file", path)
	}
	cache := opcache.New()
	fh, err := v.open(ctx, cache, path, flags, 0o644, true)
	if err != nil {
		return nil, err
	}
	defer fh.backend.Close()

	s, err := fh.backend.Stat(ctx)
	if err != nil {
		return nil, err
	}
	if s.Size == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, s.Size)
	n, err := fh.backend.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// ReadFileString is ReadFile with an encoding applied; only "utf8" is
// supported (spec.md §7: a bad encoding argument is EINVAL).
func (v *VFS) ReadFileString(ctx context.Context, path, encoding string) (string, error) {
	data, err := v.ReadFile(ctx, path, "r")
	if err != nil {
		return "", err
	}
	if encoding != "utf8" && encoding != "utf-8" {
		return "", vfserr.New(vfserr.EINVAL, "read_file", path)
	}
	if !utf8.Valid(data) {
		return "", vfserr.New(vfserr.EINVAL, "read_file", path)
	}
	return string(data), nil
}

// WriteFile implements spec.md §4.H "write_file": open writable, write at
// offset 0, emit 'change'.
func (v *VFS) WriteFile(ctx context.Context, path string, data []byte, flag string, mode vfsmode.FileMode) error {
	if flag == "" {
		flag = "w+"
	}
	flags, err := vfsflags.ParseString(flag)
	if err != nil {
		return err
	}
	if !flags.Writable {
		return vfserr.New(vfserr.EINVAL, "write_file", path)
	}
	cache := opcache.New()
	fh, err := v.open(ctx, cache, path, flags, mode, true)
	if err != nil {
		return err
	}
	defer fh.backend.Close()

	if len(data) > 0 {
		if _, err := fh.backend.WriteAt(data, 0); err != nil {
			return err
		}
	}
	v.emit("change", path)
	return nil
}

// WriteFileString encodes s as UTF-8 and writes it, per spec.md §4.H
// ("string data without encoding -> EINVAL" is handled by requiring the
// caller to go through this explicit string entry point).
func (v *VFS) WriteFileString(ctx context.Context, path, s string, flag string, mode vfsmode.FileMode) error {
	return v.WriteFile(ctx, path, []byte(s), flag, mode)
}

// AppendFile implements spec.md §4.H "append_file": identical to
// WriteFile but requires an appendable flag and writes at the current
// position rather than forcing offset 0.
func (v *VFS) AppendFile(ctx context.Context, path string, data []byte, flag string, mode vfsmode.FileMode) error {
	if flag == "" {
		flag = "a"
	}
	flags, err := vfsflags.ParseString(flag)
	if err != nil {
		return err
	}
	if !flags.Appendable {
		return vfserr.New(vfserr.EINVAL, "append_file", path)
	}
	cache := opcache.New()
	fh, err := v.open(ctx, cache, path, flags, mode, true)
	if err != nil {
		return err
	}
	defer fh.backend.Close()

	if len(data) > 0 {
		if _, err := fh.backend.WriteAt(data, fh.position); err != nil {
			return err
		}
	}
	v.emit("change", path)
	return nil
}
