package vfs

import (
	"context"
	"errors"
	"io"
	"os"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/retrofs/transfs/internal/vfserr"
	"github.com/retrofs/transfs/internal/zipindex"
)

var _ fs.NodeOpener = (*zipEntryNode)(nil)

// Open serves spec.md §4.6's rule for a ZipEntry: materialize the entry to
// a temporary file (read-only) and return a handle over it, except for
// entries at or below StreamingThreshold, which are read fully into memory
// instead, mirroring the teacher's in-memory/disk-stream split in
// node_zipfile.go but replacing its reopen-on-rewind pseudo-seek with a
// one-shot materialize-then-ReadAt, since a temp file is trivially
// seekable and the rewind case needs no special handling at all.
func (z *zipEntryNode) Open(_ context.Context, _ *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	idx, err := z.fsys.Zips.Get(z.zipPath)
	if err != nil {
		return nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "open zip %s: %v", z.zipPath, err))
	}

	info, ok := idx.Getinfo(z.zipInner)
	if !ok || info.IsDir {
		return nil, notFoundErrno()
	}

	// ZIPs are treated as immutable once present, so the kernel's page
	// cache for an opened entry never needs invalidating.
	resp.Flags |= fuse.OpenKeepCache

	threshold := z.fsys.Options.StreamingThreshold.Load()
	if threshold == 0 || info.Size <= threshold {
		data, err := zipindex.ReadAll(z.zipPath, z.zipInner)
		if err != nil {
			z.fsys.Metrics.Errors.Add(1)

			return nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "extract %s: %v", z.zipInner, err))
		}

		return &zipInMemoryHandle{data: data}, nil
	}

	h, err := materializeZipEntry(z.zipPath, z.zipInner)
	if err != nil {
		z.fsys.Metrics.Errors.Add(1)
	}

	return h, err
}

// zipInMemoryHandle serves a fully-extracted small ZIP entry from memory.
type zipInMemoryHandle struct {
	data []byte
}

var _ fs.HandleReadAller = (*zipInMemoryHandle)(nil)

func (h *zipInMemoryHandle) ReadAll(_ context.Context) ([]byte, error) {
	return h.data, nil
}

// zipTempFileHandle serves a large ZIP entry materialized to a temp file,
// unlinked immediately after the copy so the kernel's open descriptor is
// the file's only remaining reference: its blocks are reclaimed the moment
// Release closes it, with no separate cleanup step required.
type zipTempFileHandle struct {
	file *os.File
}

var (
	_ fs.HandleReader   = (*zipTempFileHandle)(nil)
	_ fs.HandleReleaser = (*zipTempFileHandle)(nil)
)

func materializeZipEntry(zipPath, inner string) (fs.Handle, error) {
	er, err := zipindex.OpenEntry(zipPath, inner)
	if err != nil {
		return nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "open entry %s in %s: %v", inner, zipPath, err))
	}
	defer er.Close() //nolint:errcheck

	tmp, err := os.CreateTemp("", "transfs-zipentry-*")
	if err != nil {
		return nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "create temp file: %v", err))
	}

	if _, err := io.Copy(tmp, er); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())

		return nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "materialize %s: %v", inner, err))
	}

	_ = os.Remove(tmp.Name())

	return &zipTempFileHandle{file: tmp}, nil
}

func (h *zipTempFileHandle) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	buf := make([]byte, req.Size)

	n, err := h.file.ReadAt(buf, req.Offset)
	if err != nil && n == 0 && !errors.Is(err, io.EOF) {
		return vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "read materialized entry: %v", err))
	}

	resp.Data = buf[:n]

	return nil
}

func (h *zipTempFileHandle) Release(_ context.Context, _ *fuse.ReleaseRequest) error {
	return h.file.Close()
}
