// Package engine provides the core database engine implementation for the
// store. The engine serves as the central coordinator and entry point for
// all database operations. It orchestrates the interaction between three
// main subsystems:
//   - Index: in-memory key -> record-pointer map for O(1) lookups.
//   - Storage: the generation log files' writer and reader pool.
//   - Compaction: the copy-and-relocate pass that reclaims stale bytes.
//
// The engine is NOT safe for concurrent use. Spec section 5 documents a
// single logical owner issuing operations in program order with no
// suspension points; there is nothing here for a mutex to protect against
// that a single goroutine wouldn't already serialize on its own. This is a
// deliberate divergence from a thread-safe façade — see DESIGN.md.
package engine

import (
	"context"
	stdErrors "errors"
	"io"
	"sort"
	"sync/atomic"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/embedkv/kvs/internal/codec"
	"github.com/embedkv/kvs/internal/compaction"
	"github.com/embedkv/kvs/internal/index"
	"github.com/embedkv/kvs/internal/logio"
	"github.com/embedkv/kvs/internal/storage"
	"github.com/embedkv/kvs/pkg/errors"
	"github.com/embedkv/kvs/pkg/options"
)

var (
	// ErrEngineClosed is returned when attempting to perform operations on a closed engine.
	ErrEngineClosed = stdErrors.New("operation failed: cannot access closed engine")
)

// Engine represents the main database engine that coordinates all subsystems.
type Engine struct {
	options    *options.Options
	log        *zap.SugaredLogger
	closed     atomic.Bool
	poisoned   atomic.Bool
	index      *index.Index
	storage    *storage.Storage
	compaction *compaction.Compaction

	// uncompacted counts bytes of log content the index no longer points
	// at — a lower bound on what compaction would reclaim. Set and
	// Remove both add to it; Compact resets it to zero.
	uncompacted int64
}

// Config holds all the parameters needed to initialize a new Engine instance.
type Config struct {
	Options *options.Options
	Logger  *zap.SugaredLogger
}

// New opens (or creates) the store rooted at config.Options.DataDir: it
// discovers existing generation log files via the storage subsystem, then
// replays each one into a fresh index to reconstruct the key -> pointer
// mapping exactly as it stood before the process last exited (spec 4.5.1).
func New(ctx context.Context, config *Config) (*Engine, error) {
	if config == nil || config.Options == nil || config.Logger == nil {
		return nil, errors.NewConfigurationValidationError("config", "engine configuration is required")
	}
	if config.Options.CompactionThreshold < options.MinCompactionThreshold {
		return nil, errors.NewFieldRangeError(
			"CompactionThreshold", config.Options.CompactionThreshold, options.MinCompactionThreshold, nil,
		)
	}

	idx, err := index.New(ctx, &index.Config{DataDir: config.Options.DataDir, Logger: config.Logger})
	if err != nil {
		return nil, err
	}

	store, err := storage.New(ctx, &storage.Config{
		DataDir: config.Options.DataDir,
		Options: config.Options,
		Logger:  config.Logger,
	})
	if err != nil {
		return nil, err
	}

	e := &Engine{options: config.Options, log: config.Logger, index: idx, storage: store}

	if err := e.recover(); err != nil {
		store.Close()
		return nil, err
	}

	comp, err := compaction.New(&compaction.Config{Storage: store, Index: idx, Logger: config.Logger})
	if err != nil {
		store.Close()
		return nil, err
	}
	e.compaction = comp

	config.Logger.Infow("engine opened",
		"dataDir", config.Options.DataDir,
		"activeGeneration", store.ActiveGeneration(),
		"keys", idx.Len(),
		"uncompacted", e.uncompacted,
	)
	return e, nil
}

// recover replays every generation log file's records into the index in
// ascending generation order, so a later generation's Set/Remove always
// wins over an earlier one's for the same key, exactly matching the order
// they were originally appended in.
func (e *Engine) recover() error {
	gens := e.storage.Generations()
	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })

	for _, gen := range gens {
		reader, ok := e.storage.Reader(gen)
		if !ok {
			return errors.NewEnginePoisonedError(gen)
		}
		contribution, err := e.load(gen, reader)
		if err != nil {
			return err
		}
		e.uncompacted += contribution
	}
	return nil
}

// load replays a single generation's records into the index, returning the
// number of bytes that generation contributed to the uncompacted total
// (spec 4.5.2).
func (e *Engine) load(gen int64, reader logioSeeker) (int64, error) {
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return 0, errors.NewIOError(err, "failed to seek generation reader for recovery").WithGeneration(gen)
	}

	dec := codec.NewDecoder(reader)
	var pos, uncompacted int64

	for {
		rec, err := dec.Decode()
		if err == io.EOF {
			return uncompacted, nil
		}
		if err == io.ErrUnexpectedEOF {
			// A truncated trailing record: the shape a crash mid-append
			// or mid-compaction leaves behind (spec 4.5.6's "partial
			// failure during compaction" note). Everything decoded
			// before it is still valid; the dangling partial bytes
			// never formed a record the index could have pointed at,
			// so there is nothing to roll back.
			e.log.Warnw("truncated trailing record during recovery, stopping replay of this generation",
				"generation", gen, "offset", pos)
			return uncompacted, nil
		}
		if err != nil {
			return 0, err
		}

		newPos := dec.InputOffset()
		length := newPos - pos

		switch rec.Kind {
		case codec.KindSet:
			old, existed := e.index.Insert(rec.Key, index.Pointer{Generation: gen, Offset: pos, Length: length})
			if existed {
				uncompacted += old.Length
			}
		case codec.KindRemove:
			old, existed := e.index.Delete(rec.Key)
			if existed {
				uncompacted += old.Length
			}
			// The remove record's own bytes are never pointed at by the
			// index; they're reclaimable at the next compaction.
			uncompacted += length
		default:
			return 0, errors.NewFaultyCommandError(gen, pos, string(rec.Kind), string(codec.KindSet)+"|"+string(codec.KindRemove))
		}

		pos = newPos
	}
}

// Set durably binds key to value: the record is appended and flushed
// before the index is updated, so a reader can never observe an index
// pointer into unflushed bytes (spec 4.5.3).
func (e *Engine) Set(key, value string) error {
	if err := e.checkUsable(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	writer := e.storage.Writer()
	pos := writer.Pos()

	b, err := codec.Encode(codec.NewSetRecord(key, value))
	if err != nil {
		return err
	}
	if _, err := writer.Write(b); err != nil {
		return errors.NewIOError(err, "failed to append set record").WithGeneration(e.storage.ActiveGeneration()).WithOffset(pos)
	}
	if err := e.flush(writer); err != nil {
		return err
	}

	newPos := writer.Pos()
	old, existed := e.index.Insert(key, index.Pointer{
		Generation: e.storage.ActiveGeneration(),
		Offset:     pos,
		Length:     newPos - pos,
	})
	if existed {
		e.uncompacted += old.Length
	}

	if e.uncompacted > e.options.CompactionThreshold {
		if err := e.Compact(); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the current value for key, and whether it was present
// (spec 4.5.4). A missing key is not an error: it is reported via the
// boolean, mirroring the Option-returning signature of the source.
func (e *Engine) Get(key string) (string, bool, error) {
	if err := e.checkUsable(); err != nil {
		return "", false, err
	}
	if err := validateKey(key); err != nil {
		return "", false, err
	}

	ptr, ok := e.index.Lookup(key)
	if !ok {
		return "", false, nil
	}

	reader, ok := e.storage.Reader(ptr.Generation)
	if !ok {
		e.poisoned.Store(true)
		return "", false, errors.NewEnginePoisonedError(ptr.Generation)
	}

	buf := make([]byte, ptr.Length)
	if err := reader.ReadAt(buf, ptr.Offset); err != nil {
		return "", false, errors.NewIOError(err, "failed to read indexed record").
			WithGeneration(ptr.Generation).WithOffset(ptr.Offset)
	}

	rec, err := codec.DecodeOne(buf)
	if err != nil {
		return "", false, err
	}
	if err := codec.RequireKind(rec.Kind, codec.KindSet, ptr.Generation, ptr.Offset); err != nil {
		return "", false, err
	}
	return rec.Value, true, nil
}

// Remove deletes key's mapping, failing with ErrNonExistentKey if it had
// none (spec 4.5.5).
func (e *Engine) Remove(key string) error {
	if err := e.checkUsable(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}

	if _, ok := e.index.Lookup(key); !ok {
		return errors.NewNonExistentKeyError(key)
	}

	writer := e.storage.Writer()
	pos := writer.Pos()

	b, err := codec.Encode(codec.NewRemoveRecord(key))
	if err != nil {
		return err
	}
	if _, err := writer.Write(b); err != nil {
		return errors.NewIOError(err, "failed to append remove record").WithGeneration(e.storage.ActiveGeneration()).WithOffset(pos)
	}
	if err := e.flush(writer); err != nil {
		return err
	}
	newPos := writer.Pos()

	old, _ := e.index.Delete(key)
	e.uncompacted += old.Length + (newPos - pos)
	return nil
}

// Compact runs one compaction pass (spec 4.5.6), relocating every live
// record into a fresh generation and pruning every generation that left
// behind. It may be called explicitly by a caller on its own schedule, or
// implicitly by Set once uncompacted crosses CompactionThreshold.
func (e *Engine) Compact() error {
	if err := e.checkUsable(); err != nil {
		return err
	}
	if _, err := e.compaction.Run(); err != nil {
		if errors.IsEnginePoisoned(err) {
			e.poisoned.Store(true)
		}
		return err
	}
	e.uncompacted = 0
	return nil
}

// Uncompacted returns the current lower-bound estimate of reclaimable
// bytes, exposed for tests and operational visibility.
func (e *Engine) Uncompacted() int64 {
	return e.uncompacted
}

func (e *Engine) flush(writer writerFlusher) error {
	gen := e.storage.ActiveGeneration()
	if e.options.SyncWrites {
		if err := writer.Sync(); err != nil {
			return errors.ClassifySyncError(err, logio.LogPath(e.options.DataDir, gen), gen, writer.Pos())
		}
		return nil
	}
	if err := writer.Flush(); err != nil {
		return errors.NewIOError(err, "failed to flush active generation").WithGeneration(gen)
	}
	return nil
}

// validateKey enforces spec 3's "arbitrary non-empty UTF-8 string" key
// domain at the engine's public boundary, before a malformed key ever
// reaches the codec or the on-disk log.
func validateKey(key string) error {
	if key == "" {
		return errors.NewRequiredFieldError("key")
	}
	if !utf8.ValidString(key) {
		return errors.NewFieldFormatError("key", key, "valid UTF-8")
	}
	return nil
}

// validateValue enforces spec 3's "arbitrary non-empty UTF-8 string"
// value domain, the same way validateKey does for keys.
func validateValue(value string) error {
	if value == "" {
		return errors.NewRequiredFieldError("value")
	}
	if !utf8.ValidString(value) {
		return errors.NewFieldFormatError("value", value, "valid UTF-8")
	}
	return nil
}

func (e *Engine) checkUsable() error {
	if e.closed.Load() {
		return ErrEngineClosed
	}
	if e.poisoned.Load() {
		return errors.ErrEnginePoisoned
	}
	return nil
}

// Close gracefully shuts down the engine and releases all associated resources.
func (e *Engine) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return ErrEngineClosed
	}
	e.log.Infow("closing engine", "dataDir", e.options.DataDir, "keys", e.index.Len())
	if err := e.index.Close(); err != nil {
		e.storage.Close()
		return err
	}
	return e.storage.Close()
}

// writerFlusher narrows *logio.PositionedWriter to the two ways a record
// can be durably pushed out of the bufio layer, plus the position needed
// to report a sync failure's offset, so Set/Remove share one
// flush-or-sync helper instead of branching inline at every callsite.
type writerFlusher interface {
	Flush() error
	Sync() error
	Pos() int64
}

// logioSeeker narrows *logio.PositionedReader to what recovery's replay
// loop needs: seek to the start and then be read from sequentially by the
// codec decoder.
type logioSeeker interface {
	io.Reader
	Seek(offset int64, whence int) (int64, error)
}
