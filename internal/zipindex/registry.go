package zipindex

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// DefaultMaxAge is the maximum age of a cached Index before it is rebuilt
// regardless of mtime, per spec.md §4.4 "max age ... and mtime equality
// are the invalidation predicates."
const DefaultMaxAge = time.Hour

// Registry is the process-wide, bounded cache of *Index values, keyed by
// absolute ZIP path. It corresponds to spec.md's "process-wide LRU map".
//
// Entries are immutable once published; a single writer replaces an entry
// on a detected mtime mismatch or max-age expiry, following the same
// single-writer/multi-reader discipline as the teacher's zipReaderCache.
type Registry struct {
	// fast is a small, lock-light, goroutine-local-flavored front cache:
	// Go has no true thread-local storage, so this approximates the
	// spec's "thread-local fast cache" with a sync.Pool of single-entry
	// slots instead of claiming thread affinity Go cannot provide. See
	// DESIGN.md for the recorded reinterpretation.
	fast sync.Pool

	mu      sync.Mutex
	entries map[string]*Index
	maxAge  time.Duration

	ttl *ttlcache.Cache[string, struct{}] // drives LRU-style capacity eviction
}

type fastSlot struct {
	path string
	idx  *Index
}

// NewRegistry returns a Registry bounded to capacity entries and
// invalidating entries older than maxAge (in addition to mtime checks).
// A maxAge of zero uses DefaultMaxAge.
func NewRegistry(capacity int, maxAge time.Duration) *Registry {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}

	r := &Registry{
		entries: make(map[string]*Index),
		maxAge:  maxAge,
	}
	r.fast = sync.Pool{New: func() any { return &fastSlot{} }}

	r.ttl = ttlcache.New(
		ttlcache.WithTTL[string, struct{}](maxAge),
		ttlcache.WithCapacity[string, struct{}](uint64(capacity)),
	)
	r.ttl.OnEviction(func(_ context.Context, _ ttlcache.EvictionReason, item *ttlcache.Item[string, struct{}]) {
		r.mu.Lock()
		delete(r.entries, item.Key())
		r.mu.Unlock()
	})

	go r.ttl.Start()

	return r
}

// Get returns the Index for zipPath, building and caching it if absent,
// stale by mtime, or older than maxAge.
func (r *Registry) Get(zipPath string) (*Index, error) {
	if slot, ok := r.fast.Get().(*fastSlot); ok {
		if slot.path == zipPath && slot.idx != nil && !slot.idx.Stale() && time.Since(slot.idx.BuiltAt) < r.maxAge {
			r.mu.Lock()
			current := r.entries[zipPath]
			r.mu.Unlock()
			if current == slot.idx {
				r.fast.Put(slot)

				return slot.idx, nil
			}
		} else {
			r.fast.Put(slot)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if idx, ok := r.entries[zipPath]; ok {
		if !idx.Stale() && time.Since(idx.BuiltAt) < r.maxAge {
			r.rememberFast(zipPath, idx)

			return idx, nil
		}
	}

	idx, err := Build(zipPath)
	if err != nil {
		return nil, fmt.Errorf("zipindex: registry build: %w", err)
	}

	r.entries[zipPath] = idx
	r.ttl.Set(zipPath, struct{}{}, ttlcache.DefaultTTL)
	r.rememberFast(zipPath, idx)

	return idx, nil
}

func (r *Registry) rememberFast(zipPath string, idx *Index) {
	slot := &fastSlot{path: zipPath, idx: idx}
	r.fast.Put(slot)
}

// Invalidate drops any cached Index for zipPath, forcing a rebuild on next Get.
func (r *Registry) Invalidate(zipPath string) {
	r.mu.Lock()
	delete(r.entries, zipPath)
	r.mu.Unlock()
	r.ttl.Delete(zipPath)
}
