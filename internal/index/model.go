package index

import (
	"go.uber.org/zap"
)

// Pointer contains the absolute minimum metadata required to locate a
// value on disk: which generation log file it lives in, the byte offset
// the record starts at, and how many bytes the record occupies. Every
// field here earns its place — the teacher's RecordPointer also tracked
// a write timestamp, a value size, and a copy of the key itself, none of
// which this store's point-lookup and compaction paths need.
type Pointer struct {
	// Generation identifies which `<gen>.log` file holds the record.
	Generation int64

	// Offset is the byte position within that generation's file where
	// the record begins.
	Offset int64

	// Length is the number of bytes the record occupies on disk,
	// letting Get read exactly the record's bytes in a single call
	// instead of scanning for its end.
	Length int64
}

// Index is the in-memory map from key to its most recent Pointer. It
// also keeps keys in deterministic sorted order so compaction can copy
// live records in a stable sequence rather than map iteration order,
// which Go deliberately randomizes.
//
// Index is not safe for concurrent use: the engine that owns it is
// documented as single-threaded, so no mutex guards these fields.
type Index struct {
	dataDir  string
	log      *zap.SugaredLogger
	pointers map[string]*Pointer
	keys     []string // kept sorted; rebuilt lazily by sortKeys
	dirty    bool     // true when keys needs re-sorting
	closed   bool
}

// Config encapsulates the configuration parameters required to initialize an Index.
type Config struct {
	DataDir string
	Logger  *zap.SugaredLogger
}
