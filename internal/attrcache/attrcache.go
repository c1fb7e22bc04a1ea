// Package attrcache implements DirCache and AttrCache: bounded,
// mtime-validated caches that let getattr/readdir skip backing stat/scandir
// calls on a hot path, without ever being the source of truth.
package attrcache

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultTTL bounds how long an entry may live even if its mtime never
// changes, keeping very rarely evicted directories from pinning memory.
const DefaultTTL = 10 * time.Minute

// AttrRecord mirrors spec.md §3's AttrRecord: the fields the façade needs
// to answer getattr without re-deriving them from an os.FileInfo.
type AttrRecord struct {
	Mode  uint32
	Nlink uint32
	UID   uint32
	GID   uint32
	Size  uint64
	Atime time.Time
	Mtime time.Time
	Ctime time.Time
}

// dirSnapshot is a DirCache value: the directory's mtime at the moment its
// entry list was captured, plus that list.
type dirSnapshot struct {
	mtime   time.Time
	entries []string
}

// attrEntry is an AttrCache value: the attributes plus the parent
// directory's snapshot mtime they were computed against.
type attrEntry struct {
	parentMtime time.Time
	record      AttrRecord
}

// DirCache caches directory listings, keyed by canonical real directory
// path, valid only while the directory's mtime matches the cached snapshot.
type DirCache struct {
	cache *ttlcache.Cache[string, dirSnapshot]
}

// NewDirCache returns a DirCache bounded to capacity entries.
func NewDirCache(capacity int) *DirCache {
	c := &DirCache{
		cache: ttlcache.New(
			ttlcache.WithTTL[string, dirSnapshot](DefaultTTL),
			ttlcache.WithCapacity[string, dirSnapshot](uint64(capacity)),
		),
	}
	go c.cache.Start()

	return c
}

// Get returns the cached entry list for dir if currentMtime still matches
// the recorded snapshot mtime.
func (c *DirCache) Get(dir string, currentMtime time.Time) ([]string, bool) {
	item := c.cache.Get(dir)
	if item == nil {
		return nil, false
	}

	snap := item.Value()
	if !snap.mtime.Equal(currentMtime) {
		return nil, false
	}

	return snap.entries, true
}

// Set records entries for dir, snapshotted at mtime.
func (c *DirCache) Set(dir string, mtime time.Time, entries []string) {
	c.cache.Set(dir, dirSnapshot{mtime: mtime, entries: entries}, ttlcache.DefaultTTL)
}

// Invalidate drops any cached snapshot for dir, forcing the next Get to miss.
func (c *DirCache) Invalidate(dir string) {
	c.cache.Delete(dir)
}

// MtimeOf returns the mtime recorded in dir's cached snapshot, if present,
// letting AttrCache avoid a redundant stat of a parent directory.
func (c *DirCache) MtimeOf(dir string) (time.Time, bool) {
	item := c.cache.Get(dir)
	if item == nil {
		return time.Time{}, false
	}

	return item.Value().mtime, true
}

// AttrCache caches AttrRecord values, keyed by canonical real path, valid
// only while the parent directory's mtime matches the value recorded at
// insertion.
type AttrCache struct {
	cache *ttlcache.Cache[string, attrEntry]
}

// NewAttrCache returns an AttrCache bounded to capacity entries.
func NewAttrCache(capacity int) *AttrCache {
	c := &AttrCache{
		cache: ttlcache.New(
			ttlcache.WithTTL[string, attrEntry](DefaultTTL),
			ttlcache.WithCapacity[string, attrEntry](uint64(capacity)),
		),
	}
	go c.cache.Start()

	return c
}

// Get returns the cached AttrRecord for path if currentParentMtime matches
// the value recorded when the entry was inserted.
func (c *AttrCache) Get(path string, currentParentMtime time.Time) (AttrRecord, bool) {
	item := c.cache.Get(path)
	if item == nil {
		return AttrRecord{}, false
	}

	entry := item.Value()
	if !entry.parentMtime.Equal(currentParentMtime) {
		return AttrRecord{}, false
	}

	return entry.record, true
}

// Set records rec for path, valid as long as parentMtime is unchanged.
func (c *AttrCache) Set(path string, parentMtime time.Time, rec AttrRecord) {
	c.cache.Set(path, attrEntry{parentMtime: parentMtime, record: rec}, ttlcache.DefaultTTL)
}

// Invalidate drops any cached record for path.
func (c *AttrCache) Invalidate(path string) {
	c.cache.Delete(path)
}
