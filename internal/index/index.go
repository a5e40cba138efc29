// Package index provides the in-memory hash table that maps keys to
// their on-disk location. This package embodies the core Bitcask
// architectural principle: keep all keys in memory with minimal
// metadata per entry while values stay on disk.
//
// The index keeps all keys in memory for immediate lookup while storing
// only essential metadata about each entry's disk location. This allows
// the store to handle datasets much larger than available RAM while
// keeping read performance close to O(1) per lookup.
package index

import (
	"context"
	stdErrors "errors"
	"fmt"
	"sort"

	"github.com/zeebo/xxh3"

	"github.com/embedkv/kvs/pkg/errors"
)

var ErrIndexClosed = stdErrors.New("operation failed: cannot access closed index")

// New creates and initializes a new Index instance.
func New(ctx context.Context, config *Config) (*Index, error) {
	if config == nil || config.DataDir == "" || config.Logger == nil {
		return nil, errors.NewConfigurationValidationError("config", "index configuration is required")
	}

	return &Index{
		log:      config.Logger,
		dataDir:  config.DataDir,
		pointers: make(map[string]*Pointer, 1024),
	}, nil
}

// Lookup returns the Pointer for key, and whether it was present.
func (idx *Index) Lookup(key string) (Pointer, bool) {
	p, ok := idx.pointers[key]
	if !ok {
		return Pointer{}, false
	}
	return *p, true
}

// Insert binds key to p, returning the previous Pointer and whether one
// existed — the caller uses the old pointer's Length to track how many
// stale bytes the previous record left behind.
func (idx *Index) Insert(key string, p Pointer) (Pointer, bool) {
	old, existed := idx.pointers[key]
	if !existed {
		idx.keys = append(idx.keys, key)
		idx.dirty = true
	}
	np := p
	idx.pointers[key] = &np

	if !existed {
		return Pointer{}, false
	}
	return *old, true
}

// Delete removes key's mapping, returning its previous Pointer and
// whether it existed.
func (idx *Index) Delete(key string) (Pointer, bool) {
	old, existed := idx.pointers[key]
	if !existed {
		return Pointer{}, false
	}
	delete(idx.pointers, key)

	for i, k := range idx.keys {
		if k == key {
			idx.keys = append(idx.keys[:i], idx.keys[i+1:]...)
			break
		}
	}
	return *old, true
}

// Len returns the number of keys currently indexed.
func (idx *Index) Len() int {
	return len(idx.pointers)
}

// Keys returns all indexed keys in ascending sorted order, the
// deterministic iteration order compaction copies records in.
func (idx *Index) Keys() []string {
	idx.sortKeys()
	out := make([]string, len(idx.keys))
	copy(out, idx.keys)
	return out
}

// Rebind updates key's Pointer in place without touching the sorted key
// slice — used by compaction, which relocates existing keys but never
// adds or removes any.
func (idx *Index) Rebind(key string, p Pointer) {
	if existing, ok := idx.pointers[key]; ok {
		*existing = p
	}
}

func (idx *Index) sortKeys() {
	if !idx.dirty {
		return
	}
	sort.Strings(idx.keys)
	idx.dirty = false
}

// Checksum hashes the sorted key set with xxh3, giving a cheap way to
// assert "same key set" across a close/reopen cycle without comparing
// every stored value.
func (idx *Index) Checksum() uint64 {
	idx.sortKeys()
	h := xxh3.New()
	for _, k := range idx.keys {
		fmt.Fprintf(h, "%s\x00", k)
	}
	return h.Sum64()
}

// Close gracefully shuts down the Index, releasing its backing map.
func (idx *Index) Close() error {
	if idx.closed {
		return ErrIndexClosed
	}
	idx.closed = true

	idx.log.Infow("closing index", "keys", len(idx.pointers))

	clear(idx.pointers)
	idx.pointers = nil
	idx.keys = nil

	return nil
}
