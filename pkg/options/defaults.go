package options

const (
	// DefaultDataDir is the base directory used when no other directory
	// is specified during Open.
	DefaultDataDir = "/var/lib/kvs"

	// DefaultCompactionThreshold is the number of stale bytes (bytes
	// belonging to records the index no longer points at) a data
	// directory may accumulate before Set triggers a compaction pass.
	DefaultCompactionThreshold int64 = 1024 * 1024

	// MinCompactionThreshold is the smallest threshold WithCompactionThreshold
	// will accept; anything smaller would compact on nearly every write.
	MinCompactionThreshold int64 = 64 * 1024

	// DefaultSyncWrites controls whether every write is followed by an
	// fsync. Off by default, trading durability-on-crash for throughput,
	// matching the store's documented single-process, single-threaded
	// contract.
	DefaultSyncWrites = false
)

// defaultOptions holds the configuration applied before any OptionFunc runs.
var defaultOptions = Options{
	DataDir:              DefaultDataDir,
	CompactionThreshold:  DefaultCompactionThreshold,
	SyncWrites:           DefaultSyncWrites,
}

// NewDefaultOptions returns a copy of the store's default configuration.
func NewDefaultOptions() Options {
	return defaultOptions
}
