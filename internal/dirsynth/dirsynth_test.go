package dirsynth

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/retrofs/transfs/internal/config"
	"github.com/retrofs/transfs/internal/zipindex"
)

func mkfile(t *testing.T, p string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, make([]byte, size), 0o644))
}

func writeZip(t *testing.T, p string, entries map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))

	f, err := os.Create(p)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}

	return out
}

// Plan is pure: it must not touch the filesystem at all. This test builds
// a Config pointing at a directory that does not exist and asserts Plan
// still succeeds, only Synthesize would need the backing store.
func Test_Plan_IsPureOverConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Filestore: "/does/not/exist",
		Clients: []config.Client{{
			Name: "MiSTer",
			Systems: []config.System{{
				Name:          "BBCMicro",
				LocalBasePath: "Acorn/BBCMicro",
				Maps: []config.MapEntry{
					{Name: "Saves", Value: &config.DirectoryMap{SourceDir: "Software/Saves"}},
				},
			}},
		}},
	}

	plan := BuildPlan(cfg, "/MiSTer/BBCMicro")
	require.Equal(t, LevelSystemRoot, plan.Level)
	require.Contains(t, plan.StaticNames, "Saves")
}

// Seed scenario 3: hierarchical ZIP traversal.
func Test_Synthesize_HierarchicalZipTraversal(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	zipPath := filepath.Join(root, "Native", "Amstrad", "CPC", "Software", "CDT", "Collection.zip")
	writeZip(t, zipPath, map[string]string{
		"Games/1942.cdt": "ZXTape!\x1adata",
		"Games/moon.cdt": "ZXTape!\x1adata2",
	})

	cfg := &config.Config{
		Filestore: root,
		Clients: []config.Client{{
			Name: "MiSTer",
			Systems: []config.System{{
				Name:          "Amstrad",
				LocalBasePath: "Amstrad/CPC",
				Maps: []config.MapEntry{{
					Name: config.SoftwareArchivesKey,
					Value: &config.SoftwareArchives{
						SourceDir: "Software",
						Filetypes: []config.FiletypeEntry{{VirtualFolder: "CDT", Spec: "CDT"}},
						ZipMode:   config.ZipModeHierarchical,
					},
				}},
			}},
		}},
	}

	zips := zipindex.NewRegistry(8, time.Minute)

	entries, err := Synthesize(cfg, zips, "/MiSTer/Amstrad/CDT")
	require.NoError(t, err)
	require.Equal(t, []string{"Collection.zip"}, names(entries))
	require.True(t, entries[0].IsDir)

	entries, err = Synthesize(cfg, zips, "/MiSTer/Amstrad/CDT/Collection.zip")
	require.NoError(t, err)
	require.Equal(t, []string{"Games"}, names(entries))

	entries, err = Synthesize(cfg, zips, "/MiSTer/Amstrad/CDT/Collection.zip/Games")
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"1942.cdt", "moon.cdt"}, names(entries))
}

// Seed scenario 4: nested map keys.
func Test_Synthesize_NestedMapKeys(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	mkfile(t, filepath.Join(root, "Native", "Acorn", "BBCMicro", "HDs", "beeb1.mmb"), 1)
	mkfile(t, filepath.Join(root, "Native", "Acorn", "BBCMicro", "HDs", "beeb2.mmb"), 1)

	cfg := &config.Config{
		Filestore: root,
		Clients: []config.Client{{
			Name: "MiSTer",
			Systems: []config.System{{
				Name:          "BBCMicro",
				LocalBasePath: "Acorn/BBCMicro",
				Maps: []config.MapEntry{
					{Name: "MMBs/beeb1_mmb.VHD", Value: &config.FileMap{SourceFilename: "HDs/beeb1.mmb"}},
					{Name: "MMBs/beeb2_mmb.VHD", Value: &config.FileMap{SourceFilename: "HDs/beeb2.mmb"}},
				},
			}},
		}},
	}

	zips := zipindex.NewRegistry(8, time.Minute)

	entries, err := Synthesize(cfg, zips, "/MiSTer/BBCMicro")
	require.NoError(t, err)
	require.Contains(t, names(entries), "MMBs")

	entries, err = Synthesize(cfg, zips, "/MiSTer/BBCMicro/MMBs")
	require.NoError(t, err)
	require.Equal(t, []string{"beeb1_mmb.VHD", "beeb2_mmb.VHD"}, names(entries))
}

// Seed scenario 6: listing tolerates a corrupt archive.
func Test_Synthesize_TolerateCorruptArchive(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	writeZip(t, filepath.Join(root, "Native", "Amstrad", "CPC", "Software", "CDT", "Good.zip"),
		map[string]string{"1942.cdt": "ZXTape!\x1adata"})

	corruptPath := filepath.Join(root, "Native", "Amstrad", "CPC", "Software", "CDT", "Bad.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(corruptPath), 0o755))
	require.NoError(t, os.WriteFile(corruptPath, []byte("not a zip"), 0o644))

	cfg := &config.Config{
		Filestore: root,
		Clients: []config.Client{{
			Name: "MiSTer",
			Systems: []config.System{{
				Name:          "Amstrad",
				LocalBasePath: "Amstrad/CPC",
				Maps: []config.MapEntry{{
					Name: config.SoftwareArchivesKey,
					Value: &config.SoftwareArchives{
						SourceDir: "Software",
						Filetypes: []config.FiletypeEntry{{VirtualFolder: "CDT", Spec: "CDT"}},
						ZipMode:   config.ZipModeFlatten,
					},
				}},
			}},
		}},
	}

	zips := zipindex.NewRegistry(8, time.Minute)

	entries, err := Synthesize(cfg, zips, "/MiSTer/Amstrad/CDT")
	require.NoError(t, err)
	require.Equal(t, []string{"1942.cdt"}, names(entries))
}

// Boundary case: empty virtual folder lists as empty without error.
func Test_Synthesize_EmptyVirtualFolder(t *testing.T) {
	t.Parallel()
	root := t.TempDir()

	cfg := &config.Config{
		Filestore: root,
		Clients: []config.Client{{
			Name: "MiSTer",
			Systems: []config.System{{
				Name:          "BBCMicro",
				LocalBasePath: "Acorn/BBCMicro",
				Maps: []config.MapEntry{
					{Name: "Saves", Value: &config.DirectoryMap{SourceDir: "Software/Saves"}},
				},
			}},
		}},
	}

	zips := zipindex.NewRegistry(8, time.Minute)

	entries, err := Synthesize(cfg, zips, "/MiSTer/BBCMicro/Saves")
	require.NoError(t, err)
	require.Empty(t, entries)
}
