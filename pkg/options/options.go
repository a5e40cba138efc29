// Package options provides data structures and functions for configuring
// the store. It defines the parameters that control where data lives on
// disk and when compaction kicks in, following the functional-options
// pattern so callers only name the settings they want to override.
package options

import (
	"strings"

	"go.uber.org/zap"
)

// Options defines the configuration parameters for a store instance.
type Options struct {
	// DataDir is the directory generation log files live in. It is
	// created on Open if it doesn't already exist.
	//
	// Default: "/var/lib/kvs"
	DataDir string `json:"dataDir"`

	// CompactionThreshold is the number of stale bytes a data directory
	// may accumulate before a compaction pass runs automatically.
	//
	// Default: 1 MiB
	CompactionThreshold int64 `json:"compactionThreshold"`

	// SyncWrites, when true, fsyncs the active generation log after
	// every write. This trades throughput for durability across an
	// operating-system crash or power loss; a plain flush already
	// survives a crash of the process alone.
	//
	// Default: false
	SyncWrites bool `json:"syncWrites"`

	// Logger receives structured logs from every subsystem the engine
	// owns. If nil, Open builds a production logger tagged "kvs".
	Logger *zap.SugaredLogger `json:"-"`
}

// OptionFunc is a function type that modifies the store's configuration.
type OptionFunc func(*Options)

// WithDefaultOptions applies the store's default configuration values.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		o.DataDir = opts.DataDir
		o.CompactionThreshold = opts.CompactionThreshold
		o.SyncWrites = opts.SyncWrites
	}
}

// WithDataDir sets the directory generation log files are stored in.
func WithDataDir(directory string) OptionFunc {
	return func(o *Options) {
		directory = strings.TrimSpace(directory)
		if directory != "" {
			o.DataDir = directory
		}
	}
}

// WithCompactionThreshold sets the stale-byte threshold that triggers
// automatic compaction. Values below MinCompactionThreshold are ignored.
func WithCompactionThreshold(threshold int64) OptionFunc {
	return func(o *Options) {
		if threshold >= MinCompactionThreshold {
			o.CompactionThreshold = threshold
		}
	}
}

// WithSyncWrites toggles whether every write is followed by an fsync.
func WithSyncWrites(sync bool) OptionFunc {
	return func(o *Options) {
		o.SyncWrites = sync
	}
}

// WithLogger sets the structured logger every subsystem logs through. A
// nil logger is ignored, leaving whatever was previously set (or the
// internally built default) in place.
func WithLogger(log *zap.SugaredLogger) OptionFunc {
	return func(o *Options) {
		if log != nil {
			o.Logger = log
		}
	}
}
