package vfs

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/retrofs/transfs/internal/attrcache"
	"github.com/retrofs/transfs/internal/vfserr"
)

var (
	_ fs.Node               = (*realNode)(nil)
	_ fs.HandleReadDirAller = (*realNode)(nil)
	_ fs.NodeStringLookuper = (*realNode)(nil)
	_ fs.NodeCreater        = (*realNode)(nil)
	_ fs.NodeMkdirer        = (*realNode)(nil)
	_ fs.NodeRemover        = (*realNode)(nil)
	_ fs.NodeOpener         = (*realNode)(nil)
)

// realNode denotes resolver.KindReal: a real backing-filesystem path. It
// may serve as a directory or a regular file; which one is decided on each
// Attr (from the attribute cache while the parent directory's mtime is
// unchanged, otherwise from a fresh stat), since a realNode's own
// virtualPath may outlive the backing file across mutations.
type realNode struct {
	fsys        *FS
	virtualPath string
	realPath    string
}

func (n *realNode) Attr(_ context.Context, a *fuse.Attr) error {
	a.Inode = n.fsys.inodeFor(n.virtualPath)

	parentDir := filepath.Dir(n.realPath)
	parentMtime, haveParent := n.parentMtime(parentDir)

	if haveParent {
		if rec, hit := n.fsys.AttrCache.Get(n.realPath, parentMtime); hit {
			n.fsys.Metrics.TotalAttrCacheHits.Add(1)
			applyRecord(a, rec)

			return nil
		}
	}
	n.fsys.Metrics.TotalAttrCacheMisses.Add(1)

	fi, err := os.Stat(n.realPath)
	if err != nil {
		return vfserr.ToErrno(vfserr.Wrap(vfserr.ErrNotFound, "stat %s: %v", n.realPath, err))
	}

	rec := recordFromStat(fi)
	applyRecord(a, rec)

	if haveParent {
		n.fsys.AttrCache.Set(n.realPath, parentMtime, rec)
	}

	return nil
}

func (n *realNode) parentMtime(parentDir string) (time.Time, bool) {
	if mt, ok := n.fsys.DirCache.MtimeOf(parentDir); ok {
		return mt, true
	}

	fi, err := os.Stat(parentDir)
	if err != nil {
		return time.Time{}, false
	}

	return fi.ModTime(), true
}

func (n *realNode) ReadDirAll(_ context.Context) ([]fuse.Dirent, error) {
	if fi, err := os.Stat(n.realPath); err == nil {
		n.fsys.DirCache.Set(n.realPath, fi.ModTime(), nil)
	}

	return readDirAll(n.fsys, n.virtualPath)
}

func (n *realNode) Lookup(_ context.Context, name string) (fs.Node, error) {
	return lookupChild(n.fsys, n.virtualPath, name)
}

func (n *realNode) Open(_ context.Context, _ *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	f, err := os.OpenFile(n.realPath, os.O_RDWR, 0) //nolint:mnd
	if err != nil {
		f, err = os.Open(n.realPath)
	}
	if err != nil {
		return nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrNotFound, "open %s: %v", n.realPath, err))
	}

	resp.Flags |= fuse.OpenKeepCache

	return &realFileHandle{file: f, path: n.realPath}, nil
}

func (n *realNode) Create(
	_ context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse,
) (fs.Node, fs.Handle, error) {
	return createFile(n.fsys, n.virtualPath, req, resp)
}

func (n *realNode) Mkdir(_ context.Context, req *fuse.MkdirRequest) (fs.Node, error) {
	return mkdirNode(n.fsys, n.virtualPath, req.Name)
}

func (n *realNode) Remove(_ context.Context, req *fuse.RemoveRequest) error {
	return removeChild(n.fsys, n.virtualPath, req.Name)
}

// applyRecord copies a cached/derived AttrRecord onto a fuse.Attr.
func applyRecord(a *fuse.Attr, rec attrcache.AttrRecord) {
	a.Mode = os.FileMode(rec.Mode)
	a.Nlink = rec.Nlink
	a.Uid = rec.UID
	a.Gid = rec.GID
	a.Size = rec.Size
	a.Atime = rec.Atime
	a.Mtime = rec.Mtime
	a.Ctime = rec.Ctime
}

// recordFromStat derives an AttrRecord from a fresh os.FileInfo. Per
// spec.md §3's AttrRecord, a directory's mode is always forced to 0o755,
// but a real file keeps its actual stat mode: the executable/write bits
// are not forced off the way they are for archive-hosted or synthetic
// files.
func recordFromStat(fi os.FileInfo) attrcache.AttrRecord {
	mode := uint32(fi.Mode().Perm())
	nlink := uint32(1)

	if fi.IsDir() {
		mode = uint32(os.ModeDir | dirBasePerm)
		nlink = 2 //nolint:mnd
	}

	return attrcache.AttrRecord{
		Mode:  mode,
		Nlink: nlink,
		Size:  uint64(fi.Size()), //nolint:gosec
		Atime: fi.ModTime(),
		Mtime: fi.ModTime(),
		Ctime: fi.ModTime(),
	}
}
