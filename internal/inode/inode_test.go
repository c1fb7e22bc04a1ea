package inode

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_For_StableAndUnique(t *testing.T) {
	t.Parallel()
	tbl := NewTable()

	a1 := tbl.For("/MiSTer/BBCMicro/Saves")
	a2 := tbl.For("/MiSTer/BBCMicro/Saves")
	require.Equal(t, a1, a2)

	b := tbl.For("/MiSTer/BBCMicro/Tape")
	require.NotEqual(t, a1, b)

	p, ok := tbl.Path(a1)
	require.True(t, ok)
	require.Equal(t, "/MiSTer/BBCMicro/Saves", p)
}

func Test_For_NoCollisionsAcrossManyPaths(t *testing.T) {
	t.Parallel()
	tbl := NewTable()

	seen := make(map[uint64]string)
	for i := 0; i < 5000; i++ {
		path := fmt.Sprintf("/MiSTer/BBCMicro/HDs/game-%d.vhd", i)
		ino := tbl.For(path)

		if existing, ok := seen[ino]; ok {
			require.Equal(t, existing, path, "inode reused for a different path")
		}
		seen[ino] = path
	}
}
