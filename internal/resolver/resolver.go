// Package resolver implements the SourceResolver: translating a parsed
// virtual path into the real backing location (or synthetic placeholder)
// it denotes, and the Write gate that picks a writable target for a path
// that does not yet exist.
package resolver

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/retrofs/transfs/internal/config"
	"github.com/retrofs/transfs/internal/pathparser"
	"github.com/retrofs/transfs/internal/zipindex"
)

// Kind tags the variant of a resolved node.
type Kind int

const (
	// KindReal denotes a real, backing-filesystem path.
	KindReal Kind = iota

	// KindZipEntry denotes a path inside an archive, addressed by the
	// archive's own path plus a POSIX-normalized inner path.
	KindZipEntry

	// KindVirtualDir denotes a directory that exists only by synthesis.
	KindVirtualDir

	// KindVirtualFile denotes a file that exists only by synthesis.
	KindVirtualFile

	// KindNotFound denotes a path with no backing and no synthesis.
	KindNotFound
)

// Node is the tagged ResolvedNode of spec.md §3.
type Node struct {
	Kind Kind

	RealPath string // valid for KindReal

	ZipPath  string // valid for KindZipEntry
	ZipInner string // valid for KindZipEntry, POSIX-normalized, may be empty
}

// Resolver resolves virtual paths against a Config and a ZipIndex registry.
type Resolver struct {
	cfg       *config.Config
	zips      *zipindex.Registry
	filestore string // cfg.Filestore, joined with "Native" for system-level real paths
}

// New returns a Resolver bound to cfg and zips.
func New(cfg *config.Config, zips *zipindex.Registry) *Resolver {
	return &Resolver{
		cfg:       cfg,
		zips:      zips,
		filestore: filepath.Join(cfg.Filestore, "Native"),
	}
}

// Resolve produces the ResolvedNode for virtualPath.
func (r *Resolver) Resolve(virtualPath string) Node {
	res := pathparser.Parse(r.cfg, virtualPath)

	switch res.Kind {
	case pathparser.TopLevel, pathparser.InClient:
		return Node{Kind: KindVirtualDir}

	case pathparser.Native:
		return r.resolveReal(filepath.Join(append([]string{r.filestore}, res.Remainder...)...), len(res.Remainder) == 0)

	case pathparser.Unknown:
		return Node{Kind: KindNotFound}

	case pathparser.InSystem:
		return Node{Kind: KindVirtualDir}

	case pathparser.InMap:
		return r.resolveInMap(res)

	default:
		return Node{Kind: KindNotFound}
	}
}

func (r *Resolver) resolveInMap(res pathparser.Result) Node {
	system := r.systemOf(res)
	if system == nil {
		return Node{Kind: KindNotFound}
	}

	sysBase := filepath.Join(r.filestore, system.LocalBasePath)

	if res.MapName == "" {
		// No literal MapEntry name matched. A SoftwareArchives entry's
		// virtual folders are declared via its filetypes list, not as
		// MapEntry names, so they must be checked explicitly here.
		if _, sa := system.FindSoftwareArchives(); sa != nil && len(res.Remainder) > 0 {
			folderToExts, _ := sa.FiletypeMaps()
			if _, ok := folderToExts[strings.ToUpper(res.Remainder[0])]; ok {
				return r.resolveSoftwareArchives(sysBase, sa, res.Remainder)
			}
		}

		if isIntermediateNestedSegment(system, res.Remainder) {
			return Node{Kind: KindVirtualDir}
		}

		return r.fallbackReal(sysBase, res.Remainder)
	}

	entry := findMapEntry(system, res.MapName)
	if entry == nil {
		return r.fallbackReal(sysBase, res.Remainder)
	}

	switch v := entry.Value.(type) {
	case *config.DirectoryMap:
		return r.resolveDirectoryMap(sysBase, v, res.Remainder)
	case *config.FileMap:
		return r.resolveFileMap(sysBase, v, res.MapName, res.Remainder)
	case *config.SoftwareArchives:
		return r.resolveSoftwareArchives(sysBase, v, res.Remainder)
	default:
		return Node{Kind: KindNotFound}
	}
}

// isIntermediateNestedSegment reports whether remainder is a strict
// prefix of some declared (possibly "/"-containing) map name, meaning it
// names a synthesized intermediate directory rather than an unmapped path.
func isIntermediateNestedSegment(system *config.System, remainder []string) bool {
	want := strings.Join(remainder, "/")
	for _, m := range system.Maps {
		if strings.HasPrefix(m.Name, want+"/") {
			return true
		}
	}

	return false
}

func (r *Resolver) systemOf(res pathparser.Result) *config.System {
	client := r.cfg.FindClient(res.Client)
	if client == nil {
		return nil
	}

	return client.FindSystem(res.System)
}

// resolveDirectoryMap implements spec.md §4.2's DirectoryMap dispatch.
func (r *Resolver) resolveDirectoryMap(sysBase string, dm *config.DirectoryMap, remainder []string) Node {
	base := filepath.Join(sysBase, dm.SourceDir)

	if len(remainder) == 0 {
		if dirExists(base) {
			return Node{Kind: KindReal, RealPath: base}
		}

		return Node{Kind: KindVirtualDir}
	}

	target := filepath.Join(append([]string{base}, remainder...)...)
	if pathExists(target) {
		return Node{Kind: KindReal, RealPath: target}
	}

	return Node{Kind: KindNotFound}
}

// resolveFileMap implements spec.md §4.2's FileMap dispatch, including
// inline ZIP notation (".zip/inner/path") and the ResolvedUnzip rule.
func (r *Resolver) resolveFileMap(sysBase string, fm *config.FileMap, mapName string, remainder []string) Node {
	sourcePath := filepath.Join(sysBase, fm.SourceFilename)

	if zipPath, inner, ok := splitInlineZip(sysBase, fm.SourceFilename); ok {
		return r.resolveZipEntry(zipPath, inner)
	}

	if strings.HasSuffix(strings.ToLower(fm.SourceFilename), ".zip") && fm.ResolvedUnzip() {
		inner := fm.ZipInternalFile
		if inner == "" {
			inner = path.Base(strings.TrimSuffix(mapName, "/"))
			inner = firstEntryByBasename(r.zips, sourcePath, inner)
		}

		if inner == "" {
			return Node{Kind: KindNotFound}
		}

		return r.resolveZipEntry(sourcePath, inner)
	}

	target := sourcePath
	if len(remainder) > 0 {
		target = filepath.Join(append([]string{sourcePath}, remainder...)...)
	}

	return r.resolveReal(target, false)
}

// resolveSoftwareArchives implements the dynamic resolver of spec.md §4.2.1.
func (r *Resolver) resolveSoftwareArchives(sysBase string, sa *config.SoftwareArchives, remainder []string) Node {
	if len(remainder) == 0 {
		return Node{Kind: KindVirtualDir}
	}

	folderToExts, realToVirt := sa.FiletypeMaps()
	realExts, ok := folderToExts[strings.ToUpper(remainder[0])]
	if !ok {
		return Node{Kind: KindNotFound}
	}

	base := filepath.Join(sysBase, sa.SourceDir)
	rest := remainder[1:]

	if len(rest) == 0 {
		return Node{Kind: KindVirtualDir}
	}

	if sa.EffectiveZipMode() != config.ZipModeFile {
		if zipPath, inner, ok := saZipBoundary(base, realExts, rest); ok {
			return r.resolveZipEntry(zipPath, inner)
		}
	}

	last := rest[len(rest)-1]
	if path.Ext(last) == "" {
		// No extension on the tail component: a virtual directory,
		// possibly backed by the first existing candidate real dir.
		for _, ext := range realExts {
			candidate := filepath.Join(append([]string{base, ext}, rest...)...)
			if dirExists(candidate) {
				return Node{Kind: KindReal, RealPath: candidate}
			}
		}

		return Node{Kind: KindVirtualDir}
	}

	name := strings.TrimSuffix(last, path.Ext(last))
	virtExt := strings.TrimPrefix(path.Ext(last), ".")
	dirParts := rest[:len(rest)-1]

	for _, realExt := range realExts {
		wantVirt := realExt
		if v, ok := realToVirt[realExt]; ok {
			wantVirt = v
		}
		if !strings.EqualFold(wantVirt, virtExt) {
			continue
		}

		realName := name + "." + realExt
		parent := filepath.Join(append([]string{base, realExt}, dirParts...)...)
		candidate := filepath.Join(parent, realName)

		if pathExists(candidate) {
			return Node{Kind: KindReal, RealPath: candidate}
		}

		if sa.SupportsZip {
			if node, ok := r.scanSiblingZips(parent, realName); ok {
				return node
			}
		}
	}

	return Node{Kind: KindNotFound}
}

// saZipBoundary detects a ZIP boundary among a SoftwareArchives path's
// remaining segments, mirroring dirsynth.saNestedEntries's disk-probing
// pattern: the segment immediately under the real-extension directory is
// checked for a matching real ".zip" file before any extension-matching
// fallback runs, so a path like "CDT/Collection.zip/Games/1942.cdt" is
// dispatched through ZipIndex instead of being mistaken for a real file
// path with "Collection.zip" as a literal directory component.
func saZipBoundary(base string, realExts []string, rest []string) (zipPath, inner string, ok bool) {
	head := rest[0]
	tail := rest[1:]

	headZip := head
	if !strings.HasSuffix(strings.ToLower(headZip), ".zip") {
		headZip += ".zip"
	}

	for _, ext := range realExts {
		candidate := filepath.Join(base, ext, headZip)
		if isRegularFile(candidate) {
			return candidate, path.Join(tail...), true
		}
	}

	return "", "", false
}

func isRegularFile(p string) bool {
	fi, err := os.Stat(p)

	return err == nil && !fi.IsDir()
}

// scanSiblingZips scans dir for ZIP archives and returns the first entry
// whose basename equals wantBasename, per spec.md §4.2.1 step 5.
func (r *Resolver) scanSiblingZips(dir, wantBasename string) (Node, bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Node{}, false
	}

	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(strings.ToLower(e.Name()), ".zip") {
			continue
		}

		zipPath := filepath.Join(dir, e.Name())

		idx, err := r.zips.Get(zipPath)
		if err != nil {
			continue
		}

		if found, ok := findBasename(idx, wantBasename); ok {
			return Node{Kind: KindZipEntry, ZipPath: zipPath, ZipInner: found}, true
		}
	}

	return Node{}, false
}

func (r *Resolver) resolveZipEntry(zipPath, inner string) Node {
	idx, err := r.zips.Get(zipPath)
	if err != nil {
		return Node{Kind: KindNotFound}
	}

	inner = strings.Trim(path.Clean("/"+inner), "/")
	if inner == "/" {
		inner = ""
	}

	if idx.Exists(inner) {
		return Node{Kind: KindZipEntry, ZipPath: zipPath, ZipInner: inner}
	}

	return Node{Kind: KindNotFound}
}

func (r *Resolver) fallbackReal(sysBase string, remainder []string) Node {
	target := sysBase
	if len(remainder) > 0 {
		target = filepath.Join(append([]string{sysBase}, remainder...)...)
	}

	return r.resolveReal(target, len(remainder) == 0)
}

func (r *Resolver) resolveReal(target string, virtualIfMissing bool) Node {
	if pathExists(target) {
		return Node{Kind: KindReal, RealPath: target}
	}
	if virtualIfMissing {
		return Node{Kind: KindVirtualDir}
	}

	return Node{Kind: KindNotFound}
}

// splitInlineZip detects inline ZIP notation embedded in a FileMap's own
// configured source_filename (e.g. "Software/MMB/BEEB2.zip/BEEB.MMB"),
// grounded on the original resolver's _parse_zippath_notation: it scans the
// configured string itself for the first "/"-separated segment ending in
// ".zip", independent of any request path, and splits there. A
// source_filename that simply ends in ".zip" (no inner path following it)
// is not inline notation; that is the plain ResolvedUnzip case instead.
func splitInlineZip(sysBase, sourceFilename string) (zipPath, inner string, ok bool) {
	segments := strings.Split(filepath.ToSlash(sourceFilename), "/")

	for i, seg := range segments {
		if !strings.HasSuffix(strings.ToLower(seg), ".zip") {
			continue
		}
		if i == len(segments)-1 {
			return "", "", false
		}

		zipRel := path.Join(segments[:i+1]...)

		return filepath.Join(sysBase, zipRel), path.Join(segments[i+1:]...), true
	}

	return "", "", false
}

func findMapEntry(system *config.System, name string) *config.MapEntry {
	for i := range system.Maps {
		if system.Maps[i].Name == name {
			return &system.Maps[i]
		}
	}

	return nil
}

func firstEntryByBasename(zips *zipindex.Registry, zipPath, basename string) string {
	idx, err := zips.Get(zipPath)
	if err != nil {
		return ""
	}

	found, _ := findBasename(idx, basename)

	return found
}

func findBasename(idx *zipindex.Index, wantBasename string) (string, bool) {
	for _, name := range idx.Listdir("") {
		if name == wantBasename {
			return name, true
		}
	}
	// Listdir("") only returns root-level first components; a full scan
	// over every known file is needed to match basenames at any depth.
	for _, name := range idx.AllFiles() {
		if path.Base(name) == wantBasename {
			return name, true
		}
	}

	return "", false
}

func pathExists(p string) bool {
	_, err := os.Stat(p)

	return err == nil
}

func dirExists(p string) bool {
	fi, err := os.Stat(p)

	return err == nil && fi.IsDir()
}
