package pathparser

import (
	"testing"

	"github.com/retrofs/transfs/internal/config"
	"github.com/stretchr/testify/require"
)

func testConfig() *config.Config {
	return &config.Config{
		Mountpoint: "/mnt/transfs",
		Filestore:  "/mnt/filestorefs",
		Clients: []config.Client{
			{
				Name: "MiSTer",
				Systems: []config.System{
					{
						Name:          "BBCMicro",
						LocalBasePath: "Acorn/BBCMicro",
						Maps: []config.MapEntry{
							{Name: "Saves", Value: &config.DirectoryMap{SourceDir: "Software/Saves"}},
							{Name: "MMBs/beeb1_mmb.VHD", Value: &config.FileMap{SourceFilename: "HDs/beeb1.mmb"}},
							{Name: "MMBs/beeb2_mmb.VHD", Value: &config.FileMap{SourceFilename: "HDs/beeb2.mmb"}},
						},
					},
				},
			},
		},
	}
}

// Expectation: Parse classifies every level of the virtual tree correctly.
func Test_Parse_Levels(t *testing.T) {
	t.Parallel()
	cfg := testConfig()

	tests := []struct {
		name string
		path string
		want Kind
	}{
		{"root", "/mnt/transfs", TopLevel},
		{"native", "/mnt/transfs/Native/foo", Native},
		{"client", "/mnt/transfs/MiSTer", InClient},
		{"system", "/mnt/transfs/MiSTer/BBCMicro", InSystem},
		{"map", "/mnt/transfs/MiSTer/BBCMicro/Saves", InMap},
		{"unknown client", "/mnt/transfs/NoSuchClient", Unknown},
		{"unknown system", "/mnt/transfs/MiSTer/NoSuchSystem", Unknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := Parse(cfg, tc.path)
			require.Equal(t, tc.want, res.Kind)
		})
	}
}

// Expectation: Parse resolves nested map keys via longest-prefix match.
func Test_Parse_NestedMapKey(t *testing.T) {
	t.Parallel()
	cfg := testConfig()

	res := Parse(cfg, "/mnt/transfs/MiSTer/BBCMicro/MMBs/beeb1_mmb.VHD")
	require.Equal(t, InMap, res.Kind)
	require.Equal(t, "MMBs/beeb1_mmb.VHD", res.MapName)
	require.Empty(t, res.Remainder)
}

// Expectation: Parse exposes an intermediate nested-key segment with no
// full map name matched, carrying the segment as Remainder for the
// DirSynthesizer to treat as a synthesized directory.
func Test_Parse_IntermediateNestedSegment(t *testing.T) {
	t.Parallel()
	cfg := testConfig()

	res := Parse(cfg, "/mnt/transfs/MiSTer/BBCMicro/MMBs")
	require.Equal(t, InMap, res.Kind)
	require.Empty(t, res.MapName)
	require.Equal(t, []string{"MMBs"}, res.Remainder)
}

// Expectation: Parse identifies a structural ZIP boundary within Remainder.
func Test_Parse_ZipBoundary(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Clients[0].Systems[0].Maps = append(cfg.Clients[0].Systems[0].Maps, config.MapEntry{
		Name:  "CDT",
		Value: &config.DirectoryMap{SourceDir: "Software/CDT"},
	})

	res := Parse(cfg, "/mnt/transfs/MiSTer/BBCMicro/CDT/Collection.zip/Games/1942.cdt")
	require.Equal(t, InMap, res.Kind)
	require.Equal(t, "CDT", res.MapName)
	require.True(t, res.HasZipBoundary)
	require.Equal(t, "Collection.zip", res.Remainder[res.ZipBoundaryIndex])
	require.Equal(t, "Games/1942.cdt", res.ZipInnerPath)
}
