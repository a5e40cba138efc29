// Package kvs provides a high-performance, embeddable key/value data
// store, inspired by Bitcask. It combines an in-memory hash table (the
// index) with an append-only log structure on disk to achieve high
// throughput for both reads and writes. It is designed for applications
// that need a simple, reliable, embedded store without the overhead of a
// network round trip to a separate database process: local caches,
// session state, and single-node configuration stores.
package kvs

import (
	"context"

	"github.com/embedkv/kvs/internal/engine"
	"github.com/embedkv/kvs/pkg/logger"
	"github.com/embedkv/kvs/pkg/options"
)

// Store is the primary entry point for interacting with a kvs data
// directory. It encapsulates the engine responsible for reading and
// writing records and the configuration this particular instance was
// opened with.
//
// Store is NOT safe for concurrent use from multiple goroutines, and a
// single data directory must not be opened by more than one Store at a
// time — see DESIGN.md for why this store's concurrency model diverges
// from a typical embedded-database façade.
type Store struct {
	engine  *engine.Engine
	options *options.Options
}

// Open opens (or creates) a store rooted at path. path becomes the
// store's DataDir; any functional options override the remaining
// defaults (compaction threshold, sync policy, logger).
func Open(path string, opts ...options.OptionFunc) (*Store, error) {
	return OpenContext(context.Background(), path, opts...)
}

// OpenContext is Open with an explicit context, threaded through to the
// subsystems' constructors for cancellation-aware setup (none of the
// current subsystems have a suspension point that honors cancellation
// mid-call, but the plumbing is in place for a future one, e.g. a
// network-backed log directory).
func OpenContext(ctx context.Context, path string, opts ...options.OptionFunc) (*Store, error) {
	cfg := options.NewDefaultOptions()
	cfg.DataDir = path
	for _, opt := range opts {
		opt(&cfg)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.New("kvs")
	}

	eng, err := engine.New(ctx, &engine.Config{Options: &cfg, Logger: log})
	if err != nil {
		return nil, err
	}
	return &Store{engine: eng, options: &cfg}, nil
}

// Set stores value under key. If key already has a value, it is
// overwritten. The write is durable as soon as Set returns nil: the
// record has been flushed (and, if SyncWrites is enabled, fsynced) to
// the active generation log before the in-memory index is updated.
func (s *Store) Set(key, value string) error {
	return s.engine.Set(key, value)
}

// Get returns the current value for key and true, or an empty string
// and false if key has no current mapping. A missing key is not an
// error.
func (s *Store) Get(key string) (string, bool, error) {
	return s.engine.Get(key)
}

// Remove deletes key's mapping. It returns an error satisfying
// errors.Is(err, kvserrors.ErrNonExistentKey) if key had no mapping.
func (s *Store) Remove(key string) error {
	return s.engine.Remove(key)
}

// Compact runs a compaction pass immediately, relocating every live
// record into a fresh generation and pruning the generations that left
// behind. Set already triggers this automatically once the store's
// uncompacted byte count crosses CompactionThreshold; Compact exists so
// a caller can additionally run it on its own schedule (e.g. from a
// ticker during low-traffic windows) instead of relying solely on the
// write-path trigger.
func (s *Store) Compact() error {
	return s.engine.Compact()
}

// Close flushes and releases every file handle the store holds. A
// closed Store rejects all further operations with engine.ErrEngineClosed.
func (s *Store) Close() error {
	return s.engine.Close()
}
