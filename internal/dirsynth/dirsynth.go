// Package dirsynth synthesizes directory listings for every level of the
// virtual tree: the mountpoint root, a client root, a system root, and the
// levels inside a map's namespace (regular, nested-key, and the three
// SoftwareArchives zip_mode behaviors).
//
// The package is split into a pure planner (Plan, over Config only, no
// filesystem or ZipIndex access) and an executor (Synthesize) that walks
// the backing store and ZipIndex to turn a Plan into a concrete listing.
package dirsynth

import (
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/retrofs/transfs/internal/config"
	"github.com/retrofs/transfs/internal/logging"
	"github.com/retrofs/transfs/internal/pathparser"
	"github.com/retrofs/transfs/internal/zipindex"
)

// Entry is one synthesized directory entry.
type Entry struct {
	Name  string
	IsDir bool
}

// Level tags the kind of listing a Plan describes.
type Level int

const (
	// LevelMountpointRoot lists "Native" plus every declared client.
	LevelMountpointRoot Level = iota

	// LevelClientRoot lists a client's declared systems.
	LevelClientRoot

	// LevelSystemRoot lists map names, nested-key leading segments, SA
	// virtual folders, and uncovered real entries of the system's base dir.
	LevelSystemRoot

	// LevelMapIntermediate lists the next segment of every nested map key
	// sharing the current remainder as a strict prefix.
	LevelMapIntermediate

	// LevelDirectoryMap lists a DirectoryMap's backing directory.
	LevelDirectoryMap

	// LevelSoftwareArchives lists the dynamic content of a SoftwareArchives
	// virtual folder (or a path beneath it), per its zip_mode.
	LevelSoftwareArchives

	// LevelZipDir lists the children of a directory inside a ZIP archive.
	LevelZipDir

	// LevelNotListable is returned for a path that does not name a
	// directory (a FileMap target, a ZIP-hosted file, or an unknown path).
	LevelNotListable
)

// Plan is the pure, Config-derived description of a listing: everything
// needed to produce it except the backing filesystem and ZipIndex reads.
type Plan struct {
	Level Level

	// StaticNames are names known purely from Config, already deduplicated
	// (but not yet merged with dynamic backing-store content).
	StaticNames []string

	// RealDir, when non-empty, is a real directory whose contents should
	// be merged into the listing (excluding ExcludeNames).
	RealDir string

	// ExcludeNames are real-dir entries that must not be merged in because
	// they are already represented virtually (e.g. a map's own source_dir).
	ExcludeNames []string

	// System/SA/Remainder carry the context LevelSoftwareArchives needs to
	// drive dynamic synthesis in Synthesize.
	System    *config.System
	SA        *config.SoftwareArchives
	Remainder []string // path beneath the matched virtual folder, if any

	// ZipPath/ZipInner carry the context LevelZipDir needs.
	ZipPath  string
	ZipInner string

	// Filestore is the joined filestore/Native root, needed to build
	// RealDir-style paths during synthesis of SA content.
	Filestore string
}

// BuildPlan computes the static, Config-only description of the listing for
// virtualPath. It performs no filesystem or ZipIndex I/O.
func BuildPlan(cfg *config.Config, virtualPath string) Plan {
	res := pathparser.Parse(cfg, virtualPath)
	filestore := filepath.Join(cfg.Filestore, "Native")

	switch res.Kind {
	case pathparser.TopLevel:
		names := []string{"Native"}
		for _, c := range cfg.Clients {
			names = append(names, c.Name)
		}

		return Plan{Level: LevelMountpointRoot, StaticNames: names, Filestore: filestore}

	case pathparser.Native:
		dir := filepath.Join(append([]string{filestore}, res.Remainder...)...)

		return Plan{Level: LevelDirectoryMap, RealDir: dir, Filestore: filestore}

	case pathparser.InClient:
		client := cfg.FindClient(res.Client)
		if client == nil {
			return Plan{Level: LevelNotListable}
		}

		names := make([]string, 0, len(client.Systems))
		for _, s := range client.Systems {
			names = append(names, s.Name)
		}

		return Plan{Level: LevelClientRoot, StaticNames: names, Filestore: filestore}

	case pathparser.InSystem:
		client := cfg.FindClient(res.Client)
		if client == nil {
			return Plan{Level: LevelNotListable}
		}

		system := client.FindSystem(res.System)
		if system == nil {
			return Plan{Level: LevelNotListable}
		}

		return planSystemRoot(system, filestore)

	case pathparser.InMap:
		client := cfg.FindClient(res.Client)
		if client == nil {
			return Plan{Level: LevelNotListable}
		}

		system := client.FindSystem(res.System)
		if system == nil {
			return Plan{Level: LevelNotListable}
		}

		return planInMap(system, res, filestore)

	default:
		return Plan{Level: LevelNotListable}
	}
}

func planSystemRoot(system *config.System, filestore string) Plan {
	seen := make(map[string]struct{})
	var names []string

	add := func(n string) {
		if _, ok := seen[n]; ok || n == "" {
			return
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}

	exclude := make([]string, 0)

	for _, m := range system.Maps {
		if m.Name == config.SoftwareArchivesKey {
			continue
		}

		first, _, _ := strings.Cut(m.Name, "/")
		add(first)

		if dm, ok := m.Value.(*config.DirectoryMap); ok {
			exclude = append(exclude, firstSegment(dm.SourceDir))
		}
	}

	if _, sa := system.FindSoftwareArchives(); sa != nil {
		folderToExts, _ := sa.FiletypeMaps()
		for folder := range folderToExts {
			add(folder)
		}

		exclude = append(exclude, firstSegment(sa.SourceDir))
	}

	sort.Strings(names)

	return Plan{
		Level:        LevelSystemRoot,
		StaticNames:  names,
		RealDir:      filepath.Join(filestore, system.LocalBasePath),
		ExcludeNames: exclude,
		System:       system,
		Filestore:    filestore,
	}
}

func planInMap(system *config.System, res pathparser.Result, filestore string) Plan {
	sysBase := filepath.Join(filestore, system.LocalBasePath)

	if res.MapName != "" {
		entry := findMapEntry(system, res.MapName)
		if entry == nil {
			return Plan{Level: LevelNotListable}
		}

		switch v := entry.Value.(type) {
		case *config.DirectoryMap:
			dir := filepath.Join(append([]string{sysBase, v.SourceDir}, res.Remainder...)...)

			return Plan{Level: LevelDirectoryMap, RealDir: dir, Filestore: filestore}

		case *config.SoftwareArchives:
			return Plan{
				Level: LevelSoftwareArchives, System: system, SA: v,
				Remainder: res.Remainder, Filestore: filestore,
			}

		default:
			return Plan{Level: LevelNotListable}
		}
	}

	if _, sa := system.FindSoftwareArchives(); sa != nil && len(res.Remainder) > 0 {
		folderToExts, _ := sa.FiletypeMaps()
		if _, ok := folderToExts[strings.ToUpper(res.Remainder[0])]; ok {
			return Plan{
				Level: LevelSoftwareArchives, System: system, SA: sa,
				Remainder: res.Remainder, Filestore: filestore,
			}
		}
	}

	// Intermediate nested-key directory: list the next path component of
	// every declared map name that has the current remainder as a strict
	// "/"-joined prefix.
	want := strings.Join(res.Remainder, "/")

	seen := make(map[string]struct{})
	var names []string

	for _, m := range system.Maps {
		rest, ok := strings.CutPrefix(m.Name, want+"/")
		if !ok {
			continue
		}

		next, _, _ := strings.Cut(rest, "/")
		if _, dup := seen[next]; dup || next == "" {
			continue
		}

		seen[next] = struct{}{}
		names = append(names, next)
	}

	if len(names) == 0 {
		return Plan{Level: LevelNotListable}
	}

	sort.Strings(names)

	return Plan{Level: LevelMapIntermediate, StaticNames: names, Filestore: filestore}
}

func findMapEntry(system *config.System, name string) *config.MapEntry {
	for i := range system.Maps {
		if system.Maps[i].Name == name {
			return &system.Maps[i]
		}
	}

	return nil
}

func firstSegment(p string) string {
	first, _, _ := strings.Cut(path.Clean(filepath.ToSlash(p)), "/")

	return first
}

// Synthesize produces the full listing for virtualPath, merging the plan's
// static names with backing-store and ZipIndex content, per the failure
// policy of spec.md §4.3.1: a single bad source is skipped, never failing
// the whole listing.
func Synthesize(cfg *config.Config, zips *zipindex.Registry, virtualPath string) ([]Entry, error) {
	plan := BuildPlan(cfg, virtualPath)

	switch plan.Level {
	case LevelMountpointRoot, LevelClientRoot, LevelMapIntermediate:
		return staticEntries(plan.StaticNames), nil

	case LevelSystemRoot:
		return mergeRealDir(plan.StaticNames, plan.RealDir, plan.ExcludeNames), nil

	case LevelDirectoryMap:
		return mergeRealDir(nil, plan.RealDir, nil), nil

	case LevelSoftwareArchives:
		return synthesizeSoftwareArchives(plan, zips), nil

	case LevelZipDir:
		return zipDirEntries(zips, plan.ZipPath, plan.ZipInner), nil

	case LevelNotListable:
		return nil, errNotListable

	default:
		return nil, errNotListable
	}
}

func staticEntries(names []string) []Entry {
	out := make([]Entry, 0, len(names))
	for _, n := range names {
		out = append(out, Entry{Name: n, IsDir: true})
	}

	return out
}

// mergeRealDir lists dir (if it exists) and merges its entries into
// staticNames, excluding any name in exclude. A plain DirectoryMap or system
// root listing has no zip_mode of its own, so a ".zip" file here is just a
// file, unlike inside a SoftwareArchives folder.
func mergeRealDir(staticNames []string, dir string, exclude []string) []Entry {
	excluded := make(map[string]struct{}, len(exclude))
	for _, e := range exclude {
		excluded[e] = struct{}{}
	}

	seen := make(map[string]struct{})
	var out []Entry

	add := func(name string, isDir bool) {
		if _, skip := excluded[name]; skip {
			return
		}
		if strings.HasPrefix(name, ".") {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		out = append(out, Entry{Name: name, IsDir: isDir})
	}

	for _, n := range staticNames {
		add(n, true)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Printf("dirsynth: skip %s: %v", dir, err)
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

		return out
	}

	for _, e := range entries {
		if e.IsDir() {
			add(e.Name(), true)
		} else {
			add(e.Name(), false)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

func zipDirEntries(zips *zipindex.Registry, zipPath, inner string) []Entry {
	idx, err := zips.Get(zipPath)
	if err != nil {
		logging.Printf("dirsynth: skip zip %s: %v", zipPath, err)

		return nil
	}

	names := idx.Listdir(inner)
	out := make([]Entry, 0, len(names))

	for _, n := range names {
		info, _ := idx.Getinfo(path.Join(inner, n))
		out = append(out, Entry{Name: n, IsDir: info.IsDir})
	}

	return out
}
