// Package inode assigns stable, mount-lifetime-durable inode numbers to
// virtual paths, replacing the teacher's fs.GenerateDynamicInode panic-on-
// collision approach with a deterministic hash plus a collision-salt
// fallback, per the REDESIGN FLAGS directive to make inode assignment
// reproducible across lookups of the same path.
package inode

import (
	"hash/fnv"
	"sync"
)

// mask keeps generated inode numbers within a positive int32 range,
// avoiding high-bit values some FUSE clients mishandle.
const mask = 1<<31 - 1

// Table assigns and remembers inode numbers for the lifetime of a mount.
type Table struct {
	mu      sync.Mutex
	byPath  map[string]uint64
	byInode map[uint64]string
}

// NewTable returns an empty Table. Inode 1 is reserved for the filesystem
// root, matching bazil.org/fuse's convention.
func NewTable() *Table {
	return &Table{
		byPath:  make(map[string]uint64),
		byInode: make(map[uint64]string),
	}
}

// For returns the stable inode number for path, computing and recording
// one on first use. Two distinct paths never receive the same inode for
// the lifetime of the Table: a hash collision is resolved by probing
// successive salts until a free slot is found.
func (t *Table) For(path string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ino, ok := t.byPath[path]; ok {
		return ino
	}

	ino := hashPath(path, 0)
	for salt := uint64(1); ; salt++ {
		existing, taken := t.byInode[ino]
		if !taken || existing == path {
			break
		}

		ino = hashPath(path, salt)
	}

	t.byPath[path] = ino
	t.byInode[ino] = path

	return ino
}

// Path returns the path previously assigned to ino, if any.
func (t *Table) Path(ino uint64) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.byInode[ino]

	return p, ok
}

func hashPath(path string, salt uint64) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(path))

	if salt != 0 {
		var buf [8]byte
		for i := range buf {
			buf[i] = byte(salt >> (8 * i)) //nolint:mnd
		}
		_, _ = h.Write(buf[:])
	}

	sum := h.Sum64() & mask
	if sum < 2 { //nolint:mnd
		sum += 2
	}

	return sum
}
