package storage

import (
	"go.uber.org/zap"

	"github.com/embedkv/kvs/internal/logio"
	"github.com/embedkv/kvs/pkg/options"
)

// Storage owns the data directory's generation log files: the writer
// for the currently active generation, and a reader for every
// generation the index might still point into. It has no notion of
// keys or records — that's the index's and engine's job — only of
// generations, readers, and writers.
type Storage struct {
	dataDir   string
	options   *options.Options
	log       *zap.SugaredLogger
	writer    *logio.PositionedWriter
	activeGen int64
	readers   map[int64]*logio.PositionedReader
	closed    bool
}

// Config encapsulates the configuration parameters required to initialize a Storage instance.
type Config struct {
	DataDir string
	Options *options.Options
	Logger  *zap.SugaredLogger
}
