package zipindex

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// createTestZip writes a real ZIP archive to dir/name with the given
// entries and returns its path, matching the teacher's fixture style of
// using real temporary archives rather than mocked readers.
func createTestZip(t *testing.T, dir, name string, entries map[string]string) string {
	t.Helper()

	zipPath := filepath.Join(dir, name)
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close()

	zw := zip.NewWriter(f)
	for entryName, content := range entries {
		w, err := zw.Create(entryName)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())

	return zipPath
}

// Expectation: Build indexes all entries and synthesizes implicit parent directories.
func Test_Build_ImplicitDirs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	zipPath := createTestZip(t, dir, "test.zip", map[string]string{
		"Games/1942.cdt": "ZXTape!\x1adata",
		"Games/moon.cdt": "ZXTape!\x1adata2",
	})

	idx, err := Build(zipPath)
	require.NoError(t, err)

	require.True(t, idx.IsDir(""))
	require.True(t, idx.IsDir("Games"))
	require.True(t, idx.IsFile("Games/1942.cdt"))
	require.False(t, idx.IsDir("Games/1942.cdt"))
}

// Expectation: Listdir yields a sorted, deduplicated set of first components.
func Test_Listdir_SortedDeduplicated(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	zipPath := createTestZip(t, dir, "test.zip", map[string]string{
		"Games/1942.cdt": "a",
		"Games/Moon.cdt": "b",
		"Docs/readme.txt": "c",
	})

	idx, err := Build(zipPath)
	require.NoError(t, err)

	require.ElementsMatch(t, []string{"Docs", "Games"}, idx.Listdir(""))
	require.Equal(t, []string{"1942.cdt", "Moon.cdt"}, idx.Listdir("Games"))
}

// Expectation: Stale reports true once the underlying archive's mtime changes.
func Test_Index_Stale(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	zipPath := createTestZip(t, dir, "test.zip", map[string]string{"a.txt": "a"})

	idx, err := Build(zipPath)
	require.NoError(t, err)
	require.False(t, idx.Stale())

	future := time.Now().Add(2 * time.Hour)
	require.NoError(t, os.Chtimes(zipPath, future, future))

	require.True(t, idx.Stale())
}

// Expectation: OpenEntry/ReadAll returns the exact bytes of an archived file.
func Test_ReadAll_RoundTrip(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	zipPath := createTestZip(t, dir, "test.zip", map[string]string{
		"Games/1942.cdt": "ZXTape!\x1arestofbytes",
	})

	data, err := ReadAll(zipPath, "Games/1942.cdt")
	require.NoError(t, err)
	require.Equal(t, "ZXTape!\x1a", string(data[:8]))
}

// Expectation: Registry.Get caches an Index and rebuilds it after invalidation.
func Test_Registry_GetAndInvalidate(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	zipPath := createTestZip(t, dir, "test.zip", map[string]string{"a.txt": "a"})

	reg := NewRegistry(10, time.Minute)

	idx1, err := reg.Get(zipPath)
	require.NoError(t, err)

	idx2, err := reg.Get(zipPath)
	require.NoError(t, err)
	require.Same(t, idx1, idx2)

	reg.Invalidate(zipPath)

	idx3, err := reg.Get(zipPath)
	require.NoError(t, err)
	require.NotSame(t, idx1, idx3)
}

// Expectation: Build fails fatally and does not panic for a corrupt archive.
func Test_Build_CorruptArchive(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	zipPath := filepath.Join(dir, "corrupt.zip")
	require.NoError(t, os.WriteFile(zipPath, []byte("not a zip"), 0o600))

	_, err := Build(zipPath)
	require.Error(t, err)
}
