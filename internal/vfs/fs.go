// Package vfs implements the FS Operations façade: the bazil.org/fuse node
// types that serve every ResolvedNode kind over a Config-driven virtual
// tree, backed by the SourceResolver, the DirSynthesizer, the ZipIndex
// registry, and the attribute/inode caches.
package vfs

import (
	"sync/atomic"
	"time"

	"bazil.org/fuse/fs"

	"github.com/retrofs/transfs/internal/attrcache"
	"github.com/retrofs/transfs/internal/config"
	"github.com/retrofs/transfs/internal/inode"
	"github.com/retrofs/transfs/internal/resolver"
	"github.com/retrofs/transfs/internal/zipindex"
)

// Mode bits are fixed per spec.md §3's AttrRecord: directories always
// report 0o755, archive-hosted and synthetic files always report 0o444
// (read-only); only a RealPath file keeps its actual stat mode.
const (
	fileBasePerm = 0o444
	dirBasePerm  = 0o755

	writableFilePerm = 0o644
	writableDirPerm  = 0o755

	virtualDirSize = 4096 // nominal size reported for synthesized directories
)

var (
	_ fs.FS               = (*FS)(nil)
	_ fs.FSInodeGenerator = (*FS)(nil)
)

// Options holds the runtime-tunable knobs the CLI and diagnostics dashboard
// adjust after mount.
type Options struct {
	// StreamingThreshold is the ZIP-entry size at or below which a file's
	// full contents are read into memory on Open; larger entries are
	// materialized to a temp file and served via ReadAt. A threshold of
	// zero reads every entry into memory.
	StreamingThreshold atomic.Uint64
}

// Metrics holds the atomic counters the diagnostics dashboard reports.
type Metrics struct {
	TotalLookups  atomic.Int64
	TotalReaddirs atomic.Int64
	TotalNotFound atomic.Int64

	OpenZips        atomic.Int64
	TotalOpenedZips atomic.Int64
	TotalClosedZips atomic.Int64

	TotalAttrCacheHits   atomic.Int64
	TotalAttrCacheMisses atomic.Int64
	TotalDirCacheHits    atomic.Int64
	TotalDirCacheMisses  atomic.Int64

	TotalWrites atomic.Int64
	Errors      atomic.Int64
}

// FS is the core implementation of the TransFS filesystem.
type FS struct {
	Config    *config.Config
	Resolver  *resolver.Resolver
	Zips      *zipindex.Registry
	Inodes    *inode.Table
	DirCache  *attrcache.DirCache
	AttrCache *attrcache.AttrCache

	Options   Options
	Metrics   Metrics
	MountTime time.Time

	// Verbose, when set, makes lookups and readdirs log through
	// internal/logging in addition to updating Metrics. Off by default
	// since every request would otherwise hit the ring buffer.
	Verbose bool
}

// New returns an FS wired to cfg and zips, ready to be served via fuse.Serve.
func New(cfg *config.Config, zips *zipindex.Registry, dirCacheSize, attrCacheSize int) *FS {
	return &FS{
		Config:    cfg,
		Resolver:  resolver.New(cfg, zips),
		Zips:      zips,
		Inodes:    inode.NewTable(),
		DirCache:  attrcache.NewDirCache(dirCacheSize),
		AttrCache: attrcache.NewAttrCache(attrCacheSize),
		MountTime: time.Now(),
	}
}

// Root returns the topmost fs.Node of the filesystem: the mountpoint root,
// always a virtual directory backed by inode 1.
func (f *FS) Root() (fs.Node, error) {
	return &virtualDirNode{fsys: f, virtualPath: "/", ino: 1}, nil
}

// GenerateInode implements fs.FSInodeGenerator to prevent dynamic inode
// generation as a library fallback. Inode assignment is handled entirely by
// internal/inode, so reaching here means some node built a Dirent without
// consulting the inode table.
func (f *FS) GenerateInode(_ uint64, _ string) uint64 {
	panic("unhandled zero inode triggered an illegal dynamic generation")
}

// inodeFor returns the stable inode number for a virtual path.
func (f *FS) inodeFor(virtualPath string) uint64 {
	return f.Inodes.For(virtualPath)
}
