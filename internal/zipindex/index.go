// Package zipindex implements the per-archive lazy metadata index and the
// process-wide, bounded cache of such indexes, plus the byte-serving path
// for reading an entry's contents.
package zipindex

import (
	"fmt"
	"os"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zip"
)

// rawEntry is one entry of the archive's central directory, stripped of a
// trailing slash, as recorded eagerly at construction time.
type rawEntry struct {
	name  string
	size  uint64
	isDir bool
}

// Index answers exists/isdir/isfile/listdir/getinfo cheaply for one
// archive, after an eager, one-time open of the archive's central
// directory. All derived sets (file/dir sets, file sizes, per-prefix
// children) are computed lazily on first query and then memoized, since
// the Index is published immutable and never mutated again.
type Index struct {
	ZipPath string
	ModTime time.Time
	BuiltAt time.Time

	raw []rawEntry

	mu            sync.Mutex
	fileSet       map[string]uint64 // populated lazily: name -> size
	dirSet        map[string]struct{}
	childrenCache map[string][]string
}

// Info is the result of Getinfo: enough to answer a getattr for an
// archive-hosted node.
type Info struct {
	IsDir bool
	Size  uint64
}

// Build opens zipPath once and constructs a new Index from its central
// directory. Any I/O error during construction is fatal for this archive:
// the caller must not cache the result.
func Build(zipPath string) (*Index, error) {
	fi, err := os.Stat(zipPath)
	if err != nil {
		return nil, fmt.Errorf("zipindex: stat %s: %w", zipPath, err)
	}

	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("zipindex: open %s: %w", zipPath, err)
	}
	defer zr.Close()

	raw := make([]rawEntry, 0, len(zr.File))
	for _, f := range zr.File {
		name := strings.TrimSuffix(path.Clean("/"+f.Name)[1:], "/")
		raw = append(raw, rawEntry{
			name:  name,
			size:  f.UncompressedSize64,
			isDir: f.FileInfo().IsDir(),
		})
	}

	return &Index{
		ZipPath: zipPath,
		ModTime: fi.ModTime(),
		BuiltAt: time.Now(),
		raw:     raw,
	}, nil
}

// Stale reports whether the on-disk archive's mtime no longer matches the
// mtime recorded when this Index was built.
func (idx *Index) Stale() bool {
	fi, err := os.Stat(idx.ZipPath)
	if err != nil {
		return true
	}

	return !fi.ModTime().Equal(idx.ModTime)
}

// ensureSets lazily derives fileSet and dirSet from raw, synthesizing
// implicit parent directories for every file that has no explicit
// directory entry of its own.
func (idx *Index) ensureSets() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.fileSet != nil {
		return
	}

	fileSet := make(map[string]uint64, len(idx.raw))
	dirSet := make(map[string]struct{})

	for _, e := range idx.raw {
		if e.name == "" {
			continue
		}

		if e.isDir {
			dirSet[e.name] = struct{}{}

			continue
		}

		fileSet[e.name] = e.size

		for parent := path.Dir(e.name); parent != "." && parent != "/"; parent = path.Dir(parent) {
			dirSet[parent] = struct{}{}
		}
	}

	idx.fileSet = fileSet
	idx.dirSet = dirSet
	idx.childrenCache = make(map[string][]string)
}

// Exists reports whether inner names a file or directory (explicit or
// implicit) within the archive.
func (idx *Index) Exists(inner string) bool {
	return idx.IsFile(inner) || idx.IsDir(inner)
}

// IsFile reports whether inner names a regular file entry.
func (idx *Index) IsFile(inner string) bool {
	idx.ensureSets()
	inner = normalizeInner(inner)

	_, ok := idx.fileSet[inner]

	return ok
}

// IsDir reports whether inner names a directory, including the archive
// root (empty inner path) and implicit parent directories.
func (idx *Index) IsDir(inner string) bool {
	idx.ensureSets()
	inner = normalizeInner(inner)

	if inner == "" {
		return true
	}

	_, ok := idx.dirSet[inner]

	return ok
}

// Getinfo returns size/kind information for inner.
func (idx *Index) Getinfo(inner string) (Info, bool) {
	idx.ensureSets()
	inner = normalizeInner(inner)

	if size, ok := idx.fileSet[inner]; ok {
		return Info{IsDir: false, Size: size}, true
	}
	if _, ok := idx.dirSet[inner]; ok || inner == "" {
		return Info{IsDir: true}, true
	}

	return Info{}, false
}

// AllFiles returns every file entry's full logical name, unsorted. It
// backs basename-match lookups (spec.md §4.2's FileMap/SoftwareArchives
// resolution) that must search the whole archive, not just one prefix.
func (idx *Index) AllFiles() []string {
	idx.ensureSets()

	out := make([]string, 0, len(idx.fileSet))
	for name := range idx.fileSet {
		out = append(out, name)
	}

	return out
}

// Listdir returns the sorted set of first path components of names that
// are proper descendants of inner, with no duplicates. The answer is
// memoized per prefix for the lifetime of the Index.
func (idx *Index) Listdir(inner string) []string {
	idx.ensureSets()
	inner = normalizeInner(inner)

	idx.mu.Lock()
	if cached, ok := idx.childrenCache[inner]; ok {
		idx.mu.Unlock()

		return cached
	}
	idx.mu.Unlock()

	seen := make(map[string]struct{})

	collect := func(name string) {
		rest, ok := descendantSuffix(inner, name)
		if !ok || rest == "" {
			return
		}

		first, _, _ := strings.Cut(rest, "/")
		seen[first] = struct{}{}
	}

	for name := range idx.fileSet {
		collect(name)
	}
	for name := range idx.dirSet {
		collect(name)
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)

	idx.mu.Lock()
	idx.childrenCache[inner] = out
	idx.mu.Unlock()

	return out
}

// descendantSuffix returns the remainder of name after prefix, if name is
// a proper descendant of prefix (or everything, when prefix is the root).
func descendantSuffix(prefix, name string) (string, bool) {
	if prefix == "" {
		return name, true
	}
	if !strings.HasPrefix(name, prefix+"/") {
		return "", false
	}

	return strings.TrimPrefix(name, prefix+"/"), true
}

func normalizeInner(inner string) string {
	inner = strings.TrimPrefix(inner, "/")
	inner = strings.TrimSuffix(inner, "/")
	if inner == "" || inner == "." {
		return ""
	}

	return path.Clean(inner)
}
