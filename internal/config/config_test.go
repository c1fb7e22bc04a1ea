package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
mountpoint: /mnt/transfs
filestore: /mnt/filestorefs
ssl_ignore_hosts: ["example.com"]
web_api:
  host: 0.0.0.0
  port: 8080
clients:
  - name: MiSTer
    default_target_path: "{system_name}/{maps}"
    systems:
      - name: BBCMicro
        manufacturer: Acorn
        cananonical_system_name: bbcmicro
        local_base_path: Acorn/BBCMicro
        maps:
          - Saves:
              source_dir: Software/Saves
          - Tape:
              source_filename: Software/Tapes/PACK.zip
              unzip: true
              zip_internal_file: PACK/Elite.uef
          - MMBs/beeb1_mmb.VHD:
              source_filename: HDs/beeb1.mmb
          - "...SoftwareArchives...":
              source_dir: Software
              zip_mode: file
              filetypes:
                - HDs: "MMB:VHD,VHD"
`

// Expectation: Load decodes every recognized top-level field and every
// MapEntry variant from a single YAML document.
func Test_Load_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfigYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/mnt/transfs", cfg.Mountpoint)
	require.Equal(t, "/mnt/filestorefs", cfg.Filestore)
	require.Equal(t, []string{"example.com"}, cfg.SSLIgnoreHosts)
	require.Equal(t, 8080, cfg.WebAPI.Port)

	client := cfg.FindClient("MiSTer")
	require.NotNil(t, client)

	sys := client.FindSystem("BBCMicro")
	require.NotNil(t, sys)
	require.Equal(t, "bbcmicro", sys.CanonicalName)
	require.Len(t, sys.Maps, 4)

	dm, ok := sys.Maps[0].Value.(*DirectoryMap)
	require.True(t, ok)
	require.Equal(t, "Software/Saves", dm.SourceDir)

	fm, ok := sys.Maps[1].Value.(*FileMap)
	require.True(t, ok)
	require.True(t, fm.ResolvedUnzip())
	require.Equal(t, "PACK/Elite.uef", fm.ZipInternalFile)

	require.Equal(t, "MMBs/beeb1_mmb.VHD", sys.Maps[2].Name)

	_, sa := sys.FindSoftwareArchives()
	require.NotNil(t, sa)
	require.Equal(t, ZipModeFile, sa.EffectiveZipMode())
	require.True(t, sa.SupportsZip)
}

// Expectation: FiletypeMaps parses plain and "R:V" extension-spec tokens.
func Test_SoftwareArchives_FiletypeMaps(t *testing.T) {
	t.Parallel()

	sa := &SoftwareArchives{
		Filetypes: []FiletypeEntry{
			{VirtualFolder: "ROM", Spec: "ROM, BIN:ROM, HEX:ROM"},
			{VirtualFolder: "HDs", Spec: "MMB:VHD,VHD"},
		},
	}

	folderToExts, realToVirt := sa.FiletypeMaps()

	require.ElementsMatch(t, []string{"ROM", "BIN", "HEX"}, folderToExts["ROM"])
	require.ElementsMatch(t, []string{"MMB", "VHD"}, folderToExts["HDS"])
	require.Equal(t, "ROM", realToVirt["BIN"])
	require.Equal(t, "ROM", realToVirt["HEX"])
	require.Equal(t, "VHD", realToVirt["MMB"])
	_, hasPlainEntry := realToVirt["VHD"]
	require.False(t, hasPlainEntry)
}

// Expectation: Load rejects a map entry that is not a single-key mapping.
func Test_Load_InvalidMapEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	bad := `
clients:
  - name: MiSTer
    systems:
      - name: BBCMicro
        maps:
          - {}
`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}
