package dirsynth

import (
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/retrofs/transfs/internal/config"
	"github.com/retrofs/transfs/internal/logging"
	"github.com/retrofs/transfs/internal/zipindex"
)

// synthesizeSoftwareArchives drives the dynamic directory synthesis of
// spec.md §4.3.1 for a SoftwareArchives entry, dispatching on EffectiveZipMode.
func synthesizeSoftwareArchives(plan Plan, zips *zipindex.Registry) []Entry {
	folderToExts, realToVirt := plan.SA.FiletypeMaps()
	folder := strings.ToUpper(plan.Remainder[0])
	realExts := folderToExts[folder]
	rest := plan.Remainder[1:]
	base := filepath.Join(plan.Filestore, plan.System.LocalBasePath, plan.SA.SourceDir)
	mode := plan.SA.EffectiveZipMode()

	if len(rest) == 0 {
		return saRootEntries(plan.SA, base, realExts, realToVirt, zips, mode)
	}

	return saNestedEntries(base, realExts, realToVirt, zips, mode, rest)
}

type saAdder func(name string, isDir bool)

func dedupingAdder(out *[]Entry) saAdder {
	seen := make(map[string]struct{})

	return func(name string, isDir bool) {
		if name == "" || strings.HasPrefix(name, ".") {
			return
		}
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		*out = append(*out, Entry{Name: name, IsDir: isDir})
	}
}

// saRootEntries lists the virtual-folder root: real directories and ZIP
// files for every declared real_ext, extension-rewriting files by the
// real_ext -> virt_ext map, per the per-mode rules of §4.3.1.
func saRootEntries(
	sa *config.SoftwareArchives, base string, realExts []string, realToVirt map[string]string,
	zips *zipindex.Registry, mode config.ZipMode,
) []Entry {
	var out []Entry
	add := dedupingAdder(&out)

	for _, ext := range realExts {
		dir := filepath.Join(base, ext)

		entries, err := os.ReadDir(dir)
		if err != nil {
			logging.Printf("dirsynth: skip software archive dir %s: %v", dir, err)

			continue
		}

		for _, e := range entries {
			name := e.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}

			switch {
			case e.IsDir():
				add(name, true)

			case strings.HasSuffix(strings.ToLower(name), ".zip"):
				addZipAtRoot(zips, filepath.Join(dir, name), name, ext, realToVirt, mode, add)

			default:
				add(rewriteExt(name, ext, realToVirt), false)
			}
		}
	}

	for _, f := range sa.Files {
		add(f, false)
	}

	return out
}

// addZipAtRoot implements the per-mode visibility rule for a ZIP file
// encountered at a SoftwareArchives virtual-folder root.
func addZipAtRoot(
	zips *zipindex.Registry, zipPath, zipName, ext string, realToVirt map[string]string,
	mode config.ZipMode, add saAdder,
) {
	switch mode {
	case config.ZipModeHierarchical:
		// Always visible as a traversable directory, regardless of
		// contents (boundary case in spec.md §8), under its literal name so
		// the resolver can find it again by the same name.
		add(zipName, true)

	case config.ZipModeFlatten:
		flattenZipEntries(zips, zipPath, ext, realToVirt, add)

	case config.ZipModeFile:
		if zipHasMatchingExtension(zips, zipPath, ext) {
			add(rewriteExt(zipName, ext, realToVirt), false)
		}

	default:
		add(zipName, true)
	}
}

// flattenZipEntries merges zipPath's files matching ext into the root
// listing by basename, per the "flatten" zip_mode of §4.3.1.
func flattenZipEntries(zips *zipindex.Registry, zipPath, ext string, realToVirt map[string]string, add saAdder) {
	idx, err := zips.Get(zipPath)
	if err != nil {
		logging.Printf("dirsynth: skip corrupt archive %s: %v", zipPath, err)

		return
	}

	wantExt := strings.ToUpper(ext)

	for _, name := range idx.AllFiles() {
		gotExt := strings.ToUpper(strings.TrimPrefix(path.Ext(name), "."))
		if gotExt != wantExt {
			continue
		}

		add(rewriteExt(path.Base(name), ext, realToVirt), false)
	}
}

// zipHasMatchingExtension reports whether zipPath contains at least one
// file entry whose extension equals ext (case-insensitive).
func zipHasMatchingExtension(zips *zipindex.Registry, zipPath, ext string) bool {
	idx, err := zips.Get(zipPath)
	if err != nil {
		logging.Printf("dirsynth: skip corrupt archive %s: %v", zipPath, err)

		return false
	}

	wantExt := strings.ToUpper(ext)

	for _, name := range idx.AllFiles() {
		if strings.ToUpper(strings.TrimPrefix(path.Ext(name), ".")) == wantExt {
			return true
		}
	}

	return false
}

// rewriteExt renames name's extension per an explicit real_ext -> virt_ext
// mapping. A plain extension-spec token (no "R:V" form) means the real
// file's own extension is exposed unchanged, so name is returned as-is.
func rewriteExt(name, realExt string, realToVirt map[string]string) string {
	virt, ok := realToVirt[strings.ToUpper(realExt)]
	if !ok {
		return name
	}

	stem := strings.TrimSuffix(name, filepath.Ext(name))

	return stem + "." + virt
}

// saNestedEntries lists a path beneath a SoftwareArchives virtual-folder
// root: either a plain real subdirectory, or (outside "file" mode) a
// directory inside one of the folder's ZIP archives.
func saNestedEntries(
	base string, realExts []string, _ map[string]string, zips *zipindex.Registry, mode config.ZipMode, rest []string,
) []Entry {
	head := rest[0]
	tail := rest[1:]

	headZip := head
	if !strings.HasSuffix(strings.ToLower(headZip), ".zip") {
		headZip += ".zip"
	}

	if mode != config.ZipModeFile {
		for _, ext := range realExts {
			zipPath := filepath.Join(base, ext, headZip)
			if pathIsFile(zipPath) {
				return zipDirEntries(zips, zipPath, path.Join(tail...))
			}
		}
	}

	for _, ext := range realExts {
		dir := filepath.Join(append([]string{base, ext}, rest...)...)
		if pathIsDir(dir) {
			return mergeRealDir(nil, dir, nil)
		}
	}

	return nil
}

func pathIsDir(p string) bool {
	fi, err := os.Stat(p)

	return err == nil && fi.IsDir()
}

func pathIsFile(p string) bool {
	fi, err := os.Stat(p)

	return err == nil && !fi.IsDir()
}
