package vfs

import (
	"path"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/retrofs/transfs/internal/dirsynth"
	"github.com/retrofs/transfs/internal/logging"
	"github.com/retrofs/transfs/internal/resolver"
	"github.com/retrofs/transfs/internal/vfserr"
)

// childPath joins a virtual directory's path with a child name, always
// producing a "/"-rooted, POSIX-clean virtual path.
func childPath(parent, name string) string {
	return path.Join(parent, name)
}

// nodeFromResolved wraps a resolver.Node in the matching vfs node type.
// Every directory node's Lookup delegates here: Resolve alone identifies a
// child's kind, regardless of which zip_mode or dirsynth rewriting rule
// made the name visible in a prior ReadDirAll, since both are derived
// independently from the same Config and ZipIndex.
func (f *FS) nodeFromResolved(virtualPath string, n resolver.Node) (fs.Node, error) {
	switch n.Kind {
	case resolver.KindReal:
		return &realNode{fsys: f, virtualPath: virtualPath, realPath: n.RealPath}, nil

	case resolver.KindZipEntry:
		return &zipEntryNode{fsys: f, virtualPath: virtualPath, zipPath: n.ZipPath, zipInner: n.ZipInner}, nil

	case resolver.KindVirtualDir:
		return &virtualDirNode{fsys: f, virtualPath: virtualPath, ino: f.inodeFor(virtualPath)}, nil

	case resolver.KindVirtualFile:
		return &virtualFileNode{fsys: f, virtualPath: virtualPath, ino: f.inodeFor(virtualPath)}, nil

	default:
		return nil, notFoundErrno()
	}
}

// notFoundErrno is the ENOENT the kernel expects for a miss.
func notFoundErrno() error {
	return fuse.ToErrno(syscall.ENOENT)
}

// readDirAll synthesizes the listing for virtualPath, shared by every
// directory-capable node type (virtual, real, or a dynamic SoftwareArchives
// folder backed by a real directory): dirsynth.Synthesize is itself purely
// virtualPath/Config-driven, independent of which resolver.Kind the caller
// happens to be.
func readDirAll(f *FS, virtualPath string) ([]fuse.Dirent, error) {
	f.Metrics.TotalReaddirs.Add(1)

	if f.Verbose {
		logging.Printf("readdir %s\n", virtualPath)
	}

	entries, err := dirsynth.Synthesize(f.Config, f.Zips, virtualPath)
	if err != nil {
		f.Metrics.Errors.Add(1)

		return nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrInvalidArgument, "readdir %s: %v", virtualPath, err))
	}

	resp := make([]fuse.Dirent, 0, len(entries))
	for _, e := range entries {
		child := childPath(virtualPath, e.Name)
		typ := fuse.DT_File
		if e.IsDir {
			typ = fuse.DT_Dir
		}

		resp = append(resp, fuse.Dirent{
			Name:  e.Name,
			Type:  typ,
			Inode: f.inodeFor(child),
		})
	}

	return resp, nil
}

// lookupChild resolves name under virtualPath and wraps it in its node
// type, shared by every directory-capable node type.
func lookupChild(f *FS, virtualPath, name string) (fs.Node, error) {
	f.Metrics.TotalLookups.Add(1)

	if f.Verbose {
		logging.Printf("lookup %s\n", childPath(virtualPath, name))
	}

	child := childPath(virtualPath, name)

	resolved := f.Resolver.Resolve(child)

	node, err := f.nodeFromResolved(child, resolved)
	if err != nil {
		f.Metrics.TotalNotFound.Add(1)
	}

	return node, err
}

// dirAttr fills a synthesized directory's attributes: fixed nlink/size,
// with the caller's mtime (the mount time for a virtual directory, the
// archive's mtime for a directory inside a ZIP).
func dirAttr(a *fuse.Attr, ino uint64, mtime time.Time) {
	a.Inode = ino
	a.Mode = fuse.S_IFDIR | dirBasePerm
	a.Nlink = 2 //nolint:mnd
	a.Size = virtualDirSize
	a.Atime = mtime
	a.Mtime = mtime
	a.Ctime = mtime
}
