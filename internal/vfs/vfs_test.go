package vfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bazil.org/fuse"
	"github.com/stretchr/testify/require"

	"github.com/retrofs/transfs/internal/config"
	"github.com/retrofs/transfs/internal/zipindex"
)

func mkfile(t *testing.T, p string, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
}

// newTestFS builds an FS over a DirectoryMap-backed system rooted at a
// fresh temp directory, mirroring the fixture shape the resolver package's
// own tests use.
func newTestFS(t *testing.T) (*FS, string) {
	t.Helper()
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "Native", "Acorn", "BBCMicro", "Games", "Elite.ssd"), "elitebytes")

	cfg := &config.Config{
		Filestore: root,
		Clients: []config.Client{{
			Name: "MiSTer",
			Systems: []config.System{{
				Name:          "BBCMicro",
				LocalBasePath: "Acorn/BBCMicro",
				Maps: []config.MapEntry{{
					Name:  "Games",
					Value: &config.DirectoryMap{SourceDir: "Games"},
				}},
			}},
		}},
	}

	reg := zipindex.NewRegistry(8, time.Minute) //nolint:mnd
	fsys := New(cfg, reg, 64, 64)               //nolint:mnd

	return fsys, root
}

func Test_Root_ReturnsVirtualDir(t *testing.T) {
	t.Parallel()
	fsys, _ := newTestFS(t)

	n, err := fsys.Root()
	require.NoError(t, err)

	d, ok := n.(*virtualDirNode)
	require.True(t, ok)
	require.Equal(t, "/", d.virtualPath)
	require.EqualValues(t, 1, d.ino)
}

func Test_GenerateInode_Panics(t *testing.T) {
	t.Parallel()
	fsys, _ := newTestFS(t)

	require.Panics(t, func() { fsys.GenerateInode(0, "x") })
}

func Test_VirtualDir_Attr_AlwaysForcesDirMode(t *testing.T) {
	t.Parallel()
	fsys, _ := newTestFS(t)

	d := &virtualDirNode{fsys: fsys, virtualPath: "/MiSTer", ino: fsys.inodeFor("/MiSTer")}

	var a fuse.Attr
	require.NoError(t, d.Attr(context.Background(), &a))
	require.Equal(t, os.FileMode(fuse.S_IFDIR|dirBasePerm), a.Mode)
	require.EqualValues(t, 2, a.Nlink) //nolint:mnd
}

func Test_VirtualDir_Lookup_And_ReadDirAll(t *testing.T) {
	t.Parallel()
	fsys, _ := newTestFS(t)

	root, err := fsys.Root()
	require.NoError(t, err)
	rootDir := root.(*virtualDirNode) //nolint:errcheck

	entries, err := rootDir.ReadDirAll(context.Background())
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	require.Contains(t, names, "MiSTer")

	clientNode, err := rootDir.Lookup(context.Background(), "MiSTer")
	require.NoError(t, err)
	require.IsType(t, &virtualDirNode{}, clientNode)

	_, err = rootDir.Lookup(context.Background(), "NoSuchClient")
	require.Error(t, err)
	require.EqualValues(t, 1, fsys.Metrics.TotalNotFound.Load())
}

func Test_RealNode_Attr_KeepsActualMode(t *testing.T) {
	t.Parallel()
	fsys, root := newTestFS(t)

	realPath := filepath.Join(root, "Native", "Acorn", "BBCMicro", "Games", "Elite.ssd")
	n := &realNode{fsys: fsys, virtualPath: "/MiSTer/BBCMicro/Games/Elite.ssd", realPath: realPath}

	var a fuse.Attr
	require.NoError(t, n.Attr(context.Background(), &a))
	require.EqualValues(t, len("elitebytes"), a.Size)
	require.Equal(t, os.FileMode(0o644), a.Mode.Perm())
}

func Test_RealNode_Attr_CachesOnSecondCall(t *testing.T) {
	t.Parallel()
	fsys, root := newTestFS(t)

	realPath := filepath.Join(root, "Native", "Acorn", "BBCMicro", "Games", "Elite.ssd")
	n := &realNode{fsys: fsys, virtualPath: "/MiSTer/BBCMicro/Games/Elite.ssd", realPath: realPath}

	var a fuse.Attr
	require.NoError(t, n.Attr(context.Background(), &a))
	require.NoError(t, n.Attr(context.Background(), &a))

	require.EqualValues(t, 1, fsys.Metrics.TotalAttrCacheMisses.Load())
	require.EqualValues(t, 1, fsys.Metrics.TotalAttrCacheHits.Load())
}

func Test_RealNode_Open_ReadsThrough(t *testing.T) {
	t.Parallel()
	fsys, root := newTestFS(t)

	realPath := filepath.Join(root, "Native", "Acorn", "BBCMicro", "Games", "Elite.ssd")
	n := &realNode{fsys: fsys, virtualPath: "/MiSTer/BBCMicro/Games/Elite.ssd", realPath: realPath}

	var resp fuse.OpenResponse
	h, err := n.Open(context.Background(), &fuse.OpenRequest{}, &resp)
	require.NoError(t, err)
	require.NotZero(t, resp.Flags&fuse.OpenKeepCache)

	rfh, ok := h.(*realFileHandle)
	require.True(t, ok)

	var rreq fuse.ReadRequest
	rreq.Size = 32
	var rresp fuse.ReadResponse
	require.NoError(t, rfh.Read(context.Background(), &rreq, &rresp))
	require.Equal(t, "elitebytes", string(rresp.Data))

	require.NoError(t, rfh.Release(context.Background(), &fuse.ReleaseRequest{}))
}

func Test_WriteGate_CreateMkdirRemove(t *testing.T) {
	t.Parallel()
	fsys, root := newTestFS(t)

	parent := &virtualDirNode{fsys: fsys, virtualPath: "/MiSTer/BBCMicro/Games", ino: fsys.inodeFor("/MiSTer/BBCMicro/Games")}

	req := &fuse.CreateRequest{Name: "New.ssd"}
	var resp fuse.CreateResponse
	node, handle, err := parent.Create(context.Background(), req, &resp)
	require.NoError(t, err)
	require.NotNil(t, node)
	require.NotNil(t, handle)

	newPath := filepath.Join(root, "Native", "Acorn", "BBCMicro", "Games", "New.ssd")
	_, err = os.Stat(newPath)
	require.NoError(t, err)
	require.EqualValues(t, 1, fsys.Metrics.TotalWrites.Load())

	rfh := handle.(*realFileHandle) //nolint:errcheck
	require.NoError(t, rfh.Release(context.Background(), &fuse.ReleaseRequest{}))

	require.NoError(t, parent.Remove(context.Background(), &fuse.RemoveRequest{Name: "New.ssd"}))
	_, err = os.Stat(newPath)
	require.True(t, os.IsNotExist(err))
}

func Test_WriteGate_Create_ExclusiveRejectsExisting(t *testing.T) {
	t.Parallel()
	fsys, _ := newTestFS(t)

	parent := &virtualDirNode{fsys: fsys, virtualPath: "/MiSTer/BBCMicro/Games", ino: fsys.inodeFor("/MiSTer/BBCMicro/Games")}

	req := &fuse.CreateRequest{Name: "Elite.ssd", Flags: fuse.OpenExclusive}
	var resp fuse.CreateResponse
	_, _, err := parent.Create(context.Background(), req, &resp)
	require.Error(t, err)
}

func Test_ZipEntryNode_Create_Rejected(t *testing.T) {
	t.Parallel()
	fsys, _ := newTestFS(t)

	z := &zipEntryNode{fsys: fsys, virtualPath: "/MiSTer/BBCMicro/Games/Archive.zip/inner", zipPath: "/nonexistent.zip", zipInner: "inner"}

	_, _, err := z.Create(context.Background(), &fuse.CreateRequest{Name: "x"}, &fuse.CreateResponse{})
	require.Error(t, err)

	_, err = z.Mkdir(context.Background(), &fuse.MkdirRequest{Name: "x"})
	require.Error(t, err)

	require.Error(t, z.Remove(context.Background(), &fuse.RemoveRequest{Name: "x"}))
}

func Test_VirtualFileNode_ReadsEmpty(t *testing.T) {
	t.Parallel()
	fsys, _ := newTestFS(t)

	vf := &virtualFileNode{fsys: fsys, virtualPath: "/phantom", ino: fsys.inodeFor("/phantom")}

	var a fuse.Attr
	require.NoError(t, vf.Attr(context.Background(), &a))
	require.Equal(t, os.FileMode(fileBasePerm), a.Mode)

	data, err := vf.ReadAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, data)
}
