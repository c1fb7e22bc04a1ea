package vfs

import (
	"context"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
)

var (
	_ fs.Node               = (*virtualDirNode)(nil)
	_ fs.HandleReadDirAller = (*virtualDirNode)(nil)
	_ fs.NodeStringLookuper = (*virtualDirNode)(nil)
	_ fs.NodeCreater        = (*virtualDirNode)(nil)
	_ fs.NodeMkdirer        = (*virtualDirNode)(nil)
	_ fs.NodeRemover        = (*virtualDirNode)(nil)
)

// virtualDirNode is a directory that exists only by synthesis: the
// mountpoint root, a client root, a system root, an intermediate
// nested-map-key directory, or a SoftwareArchives virtual folder (at any
// depth not yet backed by a real directory).
type virtualDirNode struct {
	fsys        *FS
	virtualPath string
	ino         uint64
}

func (d *virtualDirNode) Attr(_ context.Context, a *fuse.Attr) error {
	dirAttr(a, d.ino, d.fsys.MountTime)

	return nil
}

func (d *virtualDirNode) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	return readDirAll(d.fsys, d.virtualPath)
}

func (d *virtualDirNode) Lookup(_ context.Context, name string) (fs.Node, error) {
	return lookupChild(d.fsys, d.virtualPath, name)
}

func (d *virtualDirNode) Create(
	_ context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse,
) (fs.Node, fs.Handle, error) {
	return createFile(d.fsys, d.virtualPath, req, resp)
}

func (d *virtualDirNode) Mkdir(_ context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	return mkdirNode(d.fsys, d.virtualPath, req.Name)
}

func (d *virtualDirNode) Remove(_ context.Context, req *fuse.RemoveRequest) error {
	return removeChild(d.fsys, d.virtualPath, req.Name)
}

// virtualFileNode is a file that exists only by synthesis. Declared for
// completeness of the ResolvedNode kind mapping; the current resolver never
// produces KindVirtualFile, so this type answers a zero-byte read-only file
// if it is ever reached.
type virtualFileNode struct {
	fsys        *FS
	virtualPath string
	ino         uint64
}

var (
	_ fs.Node            = (*virtualFileNode)(nil)
	_ fs.HandleReadAller = (*virtualFileNode)(nil)
)

func (f *virtualFileNode) Attr(_ context.Context, a *fuse.Attr) error {
	a.Inode = f.ino
	a.Mode = fileBasePerm
	a.Size = 0

	now := time.Now()
	a.Atime, a.Mtime, a.Ctime = now, now, now

	return nil
}

func (f *virtualFileNode) ReadAll(_ context.Context) ([]byte, error) {
	return []byte{}, nil
}
