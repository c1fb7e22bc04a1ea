package vfs

import (
	"context"
	"path"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/retrofs/transfs/internal/vfserr"
)

var (
	_ fs.Node               = (*zipEntryNode)(nil)
	_ fs.HandleReadDirAller = (*zipEntryNode)(nil)
	_ fs.NodeStringLookuper = (*zipEntryNode)(nil)
	_ fs.NodeCreater        = (*zipEntryNode)(nil)
	_ fs.NodeMkdirer        = (*zipEntryNode)(nil)
	_ fs.NodeRemover        = (*zipEntryNode)(nil)
)

// zipEntryNode denotes resolver.KindZipEntry: a path inside an archive,
// addressed by the archive's own path plus a POSIX-normalized inner path.
// It serves as a directory when the entry names a directory (explicit or
// implicit) within the archive, and as a regular file otherwise.
type zipEntryNode struct {
	fsys        *FS
	virtualPath string
	zipPath     string
	zipInner    string
}

func (z *zipEntryNode) Attr(_ context.Context, a *fuse.Attr) error {
	idx, err := z.fsys.Zips.Get(z.zipPath)
	if err != nil {
		return vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "zip %s: %v", z.zipPath, err))
	}

	info, ok := idx.Getinfo(z.zipInner)
	if !ok {
		return notFoundErrno()
	}

	ino := z.fsys.inodeFor(z.virtualPath)
	if info.IsDir {
		dirAttr(a, ino, idx.ModTime)

		return nil
	}

	a.Inode = ino
	a.Mode = fileBasePerm
	a.Nlink = 1
	a.Size = info.Size
	a.Atime, a.Mtime, a.Ctime = idx.ModTime, idx.ModTime, idx.ModTime

	return nil
}

func (z *zipEntryNode) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	idx, err := z.fsys.Zips.Get(z.zipPath)
	if err != nil {
		z.fsys.Metrics.Errors.Add(1)

		return nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "zip %s: %v", z.zipPath, err))
	}

	names := idx.Listdir(z.zipInner)
	resp := make([]fuse.Dirent, 0, len(names))

	for _, name := range names {
		inner := path.Join(z.zipInner, name)
		info, _ := idx.Getinfo(inner)

		typ := fuse.DT_File
		if info.IsDir {
			typ = fuse.DT_Dir
		}

		child := childPath(z.virtualPath, name)
		resp = append(resp, fuse.Dirent{Name: name, Type: typ, Inode: z.fsys.inodeFor(child)})
	}

	return resp, nil
}

func (z *zipEntryNode) Lookup(_ context.Context, name string) (fs.Node, error) {
	idx, err := z.fsys.Zips.Get(z.zipPath)
	if err != nil {
		return nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "zip %s: %v", z.zipPath, err))
	}

	inner := path.Join(z.zipInner, name)
	if !idx.Exists(inner) {
		return nil, notFoundErrno()
	}

	child := childPath(z.virtualPath, name)

	return &zipEntryNode{fsys: z.fsys, virtualPath: child, zipPath: z.zipPath, zipInner: inner}, nil
}

// Create, Mkdir, and Remove all reject unconditionally: nothing inside a
// ZIP archive is writable, per spec.md §4.7's write gate rejecting any
// resolution that would land inside a ZIP.
func (z *zipEntryNode) Create(
	_ context.Context, _ *fuse.CreateRequest, _ *fuse.CreateResponse,
) (fs.Node, fs.Handle, error) {
	return nil, nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrReadOnly, "%q is inside a ZIP archive", z.virtualPath))
}

func (z *zipEntryNode) Mkdir(_ context.Context, _ *fuse.MkdirRequest) (fs.Node, error) {
	return nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrReadOnly, "%q is inside a ZIP archive", z.virtualPath))
}

func (z *zipEntryNode) Remove(_ context.Context, _ *fuse.RemoveRequest) error {
	return vfserr.ToErrno(vfserr.Wrap(vfserr.ErrReadOnly, "%q is inside a ZIP archive", z.virtualPath))
}
