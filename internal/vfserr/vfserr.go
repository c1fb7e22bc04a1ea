// Package vfserr defines the stable error kinds surfaced by the façade
// (spec.md §7), independent of the kernel bridge's errno representation.
package vfserr

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"bazil.org/fuse"
)

var (
	// ErrNotFound is returned when a path does not resolve and is not
	// present in synthesis.
	ErrNotFound = errors.New("vfs: not found")

	// ErrPermissionDenied wraps a backing EACCES.
	ErrPermissionDenied = errors.New("vfs: permission denied")

	// ErrReadOnly is returned for a write with no writable mapping,
	// including any write that would land inside a ZIP archive.
	ErrReadOnly = errors.New("vfs: read-only filesystem")

	// ErrInvalidArgument is returned for a malformed name or an operation
	// on an unsupported target.
	ErrInvalidArgument = errors.New("vfs: invalid argument")

	// ErrIO wraps a failed backing I/O operation (bad archive, failed read).
	ErrIO = errors.New("vfs: input/output error")

	// ErrExists is returned by create with O_EXCL on an existing file.
	ErrExists = errors.New("vfs: already exists")
)

// ToErrno maps an error kind to the syscall.Errno the kernel bridge
// expects, inspecting the error chain for a kind sentinel first and
// falling back to the wrapped syscall.Errno (or os.IsNotExist/
// os.IsPermission classification), and finally to EIO, mirroring the
// teacher's toFuseErr in internal/filesystem/util.go.
func ToErrno(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return fuse.ToErrno(syscall.ENOENT)
	case errors.Is(err, ErrPermissionDenied):
		return fuse.ToErrno(syscall.EACCES)
	case errors.Is(err, ErrReadOnly):
		return fuse.ToErrno(syscall.EROFS)
	case errors.Is(err, ErrInvalidArgument):
		return fuse.ToErrno(syscall.EINVAL)
	case errors.Is(err, ErrExists):
		return fuse.ToErrno(syscall.EEXIST)
	case errors.Is(err, ErrIO):
		return fuse.ToErrno(syscall.EIO)
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		return fuse.ToErrno(errno)
	}

	switch {
	case os.IsNotExist(err):
		return fuse.ToErrno(syscall.ENOENT)
	case os.IsPermission(err):
		return fuse.ToErrno(syscall.EACCES)
	default:
		return fuse.ToErrno(syscall.EIO)
	}
}

// Wrap annotates err with a message while preserving errors.Is matching
// against the package's sentinel kinds.
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{kind}, args...)...)
}
