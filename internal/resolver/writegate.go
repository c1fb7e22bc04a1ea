package resolver

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/retrofs/transfs/internal/config"
	"github.com/retrofs/transfs/internal/pathparser"
	"github.com/retrofs/transfs/internal/vfserr"
)

// ResolveForWrite determines the real writable target for virtualPath,
// per spec.md §4.7: it walks the same MapEntry dispatch as Resolve but
// ignores existence, creates intermediate directories, and rejects any
// resolution that would land inside a ZIP.
func (r *Resolver) ResolveForWrite(virtualPath string) (string, error) {
	res := pathparser.Parse(r.cfg, virtualPath)

	if res.Kind != pathparser.InMap {
		return "", vfserr.Wrap(vfserr.ErrReadOnly, "path %q is not writable", virtualPath)
	}

	system := r.systemOf(res)
	if system == nil {
		return "", vfserr.Wrap(vfserr.ErrNotFound, "no such system for %q", virtualPath)
	}

	sysBase := filepath.Join(r.filestore, system.LocalBasePath)

	if res.MapName == "" {
		if _, sa := system.FindSoftwareArchives(); sa != nil && len(res.Remainder) > 0 {
			folderToExts, _ := sa.FiletypeMaps()
			if _, ok := folderToExts[strings.ToUpper(res.Remainder[0])]; ok {
				return r.writeSoftwareArchives(sysBase, sa, res.Remainder, virtualPath)
			}
		}

		return "", vfserr.Wrap(vfserr.ErrReadOnly, "%q has no declared writable mapping", virtualPath)
	}

	entry := findMapEntry(system, res.MapName)
	if entry == nil {
		return "", vfserr.Wrap(vfserr.ErrReadOnly, "%q has no declared writable mapping", virtualPath)
	}

	switch v := entry.Value.(type) {
	case *config.DirectoryMap:
		target := filepath.Join(append([]string{sysBase, v.SourceDir}, res.Remainder...)...)

		return r.makeWritable(target)

	case *config.FileMap:
		if strings.HasSuffix(strings.ToLower(v.SourceFilename), ".zip") {
			return "", vfserr.Wrap(vfserr.ErrReadOnly, "%q resolves into a ZIP archive", virtualPath)
		}
		if _, _, ok := splitInlineZip(sysBase, v.SourceFilename); ok {
			return "", vfserr.Wrap(vfserr.ErrReadOnly, "%q resolves into a ZIP archive", virtualPath)
		}

		target := filepath.Join(sysBase, v.SourceFilename)

		return r.makeWritable(target)

	case *config.SoftwareArchives:
		return r.writeSoftwareArchives(sysBase, v, res.Remainder, virtualPath)

	default:
		return "", vfserr.Wrap(vfserr.ErrReadOnly, "%q has no declared writable mapping", virtualPath)
	}
}

// writeSoftwareArchives picks the first declared real_ext as the write
// target, rewriting the virtual extension to the real one, per §4.7.
func (r *Resolver) writeSoftwareArchives(
	sysBase string, sa *config.SoftwareArchives, remainder []string, virtualPath string,
) (string, error) {
	if len(remainder) == 0 {
		return "", vfserr.Wrap(vfserr.ErrReadOnly, "%q is a directory", virtualPath)
	}

	folderToExts, _ := sa.FiletypeMaps()
	realExts, ok := folderToExts[strings.ToUpper(remainder[0])]
	if !ok || len(realExts) == 0 {
		return "", vfserr.Wrap(vfserr.ErrReadOnly, "%q has no declared extension mapping", virtualPath)
	}

	rest := remainder[1:]
	if len(rest) == 0 {
		return "", vfserr.Wrap(vfserr.ErrReadOnly, "%q is a directory", virtualPath)
	}

	base := filepath.Join(sysBase, sa.SourceDir)
	if sa.EffectiveZipMode() != config.ZipModeFile {
		if _, _, ok := saZipBoundary(base, realExts, rest); ok {
			return "", vfserr.Wrap(vfserr.ErrReadOnly, "%q resolves into a ZIP archive", virtualPath)
		}
	}

	last := rest[len(rest)-1]
	if path.Ext(last) == "" {
		return "", vfserr.Wrap(vfserr.ErrReadOnly, "%q is a directory", virtualPath)
	}

	name := strings.TrimSuffix(last, path.Ext(last))
	realExt := realExts[0]
	realName := name + "." + realExt
	dirParts := rest[:len(rest)-1]

	target := filepath.Join(append([]string{sysBase, sa.SourceDir, realExt}, dirParts...)...)
	target = filepath.Join(target, realName)

	return r.makeWritable(target)
}

func (r *Resolver) makeWritable(target string) (string, error) {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil { //nolint:mnd
		return "", fmt.Errorf("writegate: mkdir parents for %s: %w", target, err)
	}

	return target, nil
}
