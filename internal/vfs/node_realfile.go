package vfs

import (
	"context"
	"os"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/retrofs/transfs/internal/vfserr"
)

var (
	_ fs.HandleReader   = (*realFileHandle)(nil)
	_ fs.HandleWriter   = (*realFileHandle)(nil)
	_ fs.HandleReleaser = (*realFileHandle)(nil)
)

// realFileHandle is the open file descriptor behind a RealPath file,
// serving reads and writes directly against the backing file.
type realFileHandle struct {
	file *os.File
	path string
}

func (h *realFileHandle) Read(_ context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	buf := make([]byte, req.Size)

	n, err := h.file.ReadAt(buf, req.Offset)
	if err != nil && n == 0 {
		return vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "read %s: %v", h.path, err))
	}

	resp.Data = buf[:n]

	return nil
}

func (h *realFileHandle) Write(_ context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	n, err := h.file.WriteAt(req.Data, req.Offset)
	if err != nil {
		return vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "write %s: %v", h.path, err))
	}

	resp.Size = n

	return nil
}

func (h *realFileHandle) Release(_ context.Context, _ *fuse.ReleaseRequest) error {
	return h.file.Close()
}
