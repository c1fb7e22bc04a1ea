// Glue between the FUSE create/mkdir/unlink operations and
// resolver.ResolveForWrite, shared by every directory-capable node type.
package vfs

import (
	"os"
	"path/filepath"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"

	"github.com/retrofs/transfs/internal/resolver"
	"github.com/retrofs/transfs/internal/vfserr"
)

// createFile implements fs.NodeCreater's contract: resolve a writable
// target for the new child, create it, and return both the serving node
// and an open handle over it, per spec.md §4.7.
func createFile(
	fsys *FS, parentVirtualPath string, req *fuse.CreateRequest, resp *fuse.CreateResponse,
) (fs.Node, fs.Handle, error) {
	child := childPath(parentVirtualPath, req.Name)

	target, err := fsys.Resolver.ResolveForWrite(child)
	if err != nil {
		return nil, nil, vfserr.ToErrno(err)
	}

	flags := os.O_RDWR | os.O_CREATE
	if req.Flags&fuse.OpenExclusive != 0 {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(target, flags, writableFilePerm) //nolint:gosec
	if err != nil {
		if os.IsExist(err) {
			return nil, nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrExists, "create %s: %v", target, err))
		}

		return nil, nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "create %s: %v", target, err))
	}

	fsys.Metrics.TotalWrites.Add(1)
	fsys.DirCache.Invalidate(filepath.Dir(target))
	resp.Flags |= fuse.OpenKeepCache

	return &realNode{fsys: fsys, virtualPath: child, realPath: target}, &realFileHandle{file: f, path: target}, nil
}

// mkdirNode implements fs.NodeMkdirer's contract. A SoftwareArchives entry
// rejects any remainder whose final segment has no extension (resolver's
// writeSoftwareArchives treats that as naming a directory, not a file), so
// mkdir beneath a dynamic extension folder is not supported; all other
// writable mappings create the directory directly.
func mkdirNode(fsys *FS, parentVirtualPath, name string) (fs.Node, error) {
	child := childPath(parentVirtualPath, name)

	target, err := fsys.Resolver.ResolveForWrite(child)
	if err != nil {
		return nil, vfserr.ToErrno(err)
	}

	if err := os.MkdirAll(target, writableDirPerm); err != nil {
		return nil, vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "mkdir %s: %v", target, err))
	}

	fsys.Metrics.TotalWrites.Add(1)
	fsys.DirCache.Invalidate(filepath.Dir(target))

	return &realNode{fsys: fsys, virtualPath: child, realPath: target}, nil
}

// removeChild implements fs.NodeRemover's contract: only a path that
// resolves to a real backing file or directory can be removed.
func removeChild(fsys *FS, parentVirtualPath, name string) error {
	child := childPath(parentVirtualPath, name)

	resolved := fsys.Resolver.Resolve(child)
	if resolved.Kind != resolver.KindReal {
		return vfserr.ToErrno(vfserr.Wrap(vfserr.ErrReadOnly, "%q cannot be removed", child))
	}

	if err := os.Remove(resolved.RealPath); err != nil {
		return vfserr.ToErrno(vfserr.Wrap(vfserr.ErrIO, "remove %s: %v", resolved.RealPath, err))
	}

	fsys.AttrCache.Invalidate(resolved.RealPath)
	fsys.DirCache.Invalidate(filepath.Dir(resolved.RealPath))
	fsys.Metrics.TotalWrites.Add(1)

	return nil
}
