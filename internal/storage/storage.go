// Package storage manages the append-only generation log files a store
// directory is made of. It was designed to solve the core challenge of
// a log-structured store's persistence layer: data arrives continuously
// and must be appended durably to exactly one active file, while older
// generations stay readable (for point lookups and compaction) until
// they're pruned.
//
// Core Architecture:
//
// The storage layer operates on the concept of "generations" -
// individual append-only files named `<gen>.log`. There is always
// exactly one active generation being written to. Compaction bumps the
// generation number by two: the lower of the two becomes a compaction
// target written once and then left read-only, and the higher becomes
// the new active generation for subsequent writes.
//
// Initialization and Recovery:
//
// On Open, Storage scans the directory for existing generation files,
// opens a reader for each one (so the engine can replay them into the
// index and so Get can still reach old records the index points at),
// and opens a writer for a fresh generation one past the highest one
// found — mirroring the teacher's segment-discovery bootstrap, adapted
// from size-based segment rotation to the spec's generation-per-compaction
// model.
package storage

import (
	"context"
	stdErrors "errors"

	"github.com/embedkv/kvs/internal/logio"
	"github.com/embedkv/kvs/pkg/errors"
	"github.com/embedkv/kvs/pkg/filesys"
	"github.com/embedkv/kvs/pkg/options"
)

var ErrStorageClosed = stdErrors.New("operation failed: cannot access closed storage")

// New creates and initializes a new Storage instance, discovering
// existing generations and opening a fresh active generation to write
// into.
func New(ctx context.Context, config *Config) (*Storage, error) {
	if config == nil || config.Options == nil || config.Logger == nil || config.DataDir == "" {
		return nil, errors.NewConfigurationValidationError("config", "storage configuration is required")
	}

	config.Logger.Infow("initializing storage", "dataDir", config.DataDir)

	if err := filesys.CreateDir(config.DataDir, 0755, true); err != nil {
		return nil, errors.ClassifyDirectoryCreationError(err, config.DataDir)
	}

	gens, err := logio.ListGenerations(config.DataDir)
	if err != nil {
		return nil, err
	}

	s := &Storage{
		dataDir: config.DataDir,
		options: config.Options,
		log:     config.Logger,
		readers: make(map[int64]*logio.PositionedReader, len(gens)+1),
	}

	for _, gen := range gens {
		reader, err := logio.OpenReader(config.DataDir, gen)
		if err != nil {
			s.closeReaders()
			return nil, err
		}
		s.readers[gen] = reader
	}

	var nextGen int64 = 1
	if len(gens) > 0 {
		nextGen = gens[len(gens)-1] + 1
	}

	if err := s.openActiveGeneration(nextGen); err != nil {
		s.closeReaders()
		return nil, err
	}

	config.Logger.Infow("storage initialized", "activeGeneration", s.activeGen, "priorGenerations", gens)
	return s, nil
}

// openActiveGeneration opens gen for writing and registers a matching
// reader for it, becoming the new active generation.
func (s *Storage) openActiveGeneration(gen int64) error {
	writer, err := logio.CreateWriter(s.dataDir, gen)
	if err != nil {
		return err
	}

	reader, err := logio.OpenReader(s.dataDir, gen)
	if err != nil {
		writer.Close()
		return err
	}

	s.writer = writer
	s.activeGen = gen
	s.readers[gen] = reader
	return nil
}

// Generations returns every generation number with a live reader, the
// set the engine's index may legally point into.
func (s *Storage) Generations() []int64 {
	gens := make([]int64, 0, len(s.readers))
	for gen := range s.readers {
		gens = append(gens, gen)
	}
	return gens
}

// ActiveGeneration returns the generation currently being appended to.
func (s *Storage) ActiveGeneration() int64 {
	return s.activeGen
}

// Writer returns the writer for the active generation.
func (s *Storage) Writer() *logio.PositionedWriter {
	return s.writer
}

// Reader returns the reader registered for gen, or false if none exists
// — the engine treats a missing reader for a generation the index
// references as a poisoning condition (see internal/engine).
func (s *Storage) Reader(gen int64) (*logio.PositionedReader, bool) {
	r, ok := s.readers[gen]
	return r, ok
}

// BeginCompaction opens a fresh writer for compactionGen (the
// compaction target, one above the generation that was active) and
// rolls the active generation forward to newActiveGen (two above),
// closing the now-former active generation's writer but leaving its
// reader in place so any in-flight Get against it still succeeds until
// compaction relocates its records.
func (s *Storage) BeginCompaction(compactionGen, newActiveGen int64) (*logio.PositionedWriter, error) {
	compactionWriter, err := logio.CreateWriter(s.dataDir, compactionGen)
	if err != nil {
		return nil, err
	}
	compactionReader, err := logio.OpenReader(s.dataDir, compactionGen)
	if err != nil {
		compactionWriter.Close()
		return nil, err
	}
	s.readers[compactionGen] = compactionReader

	prevWriter := s.writer
	if err := s.openActiveGeneration(newActiveGen); err != nil {
		return nil, err
	}
	if err := prevWriter.Close(); err != nil {
		return nil, err
	}

	return compactionWriter, nil
}

// Prune closes and removes every generation strictly below
// keepFromGen — the stale generations compaction has fully
// superseded. Readers are dropped before their files are removed, so
// no generation is ever deleted while still open.
func (s *Storage) Prune(keepFromGen int64) error {
	for gen, reader := range s.readers {
		if gen >= keepFromGen {
			continue
		}
		if err := reader.Close(); err != nil {
			return err
		}
		delete(s.readers, gen)
		if err := logio.RemoveLog(s.dataDir, gen); err != nil {
			return err
		}
		s.log.Infow("pruned stale generation", "generation", gen)
	}
	return nil
}

func (s *Storage) closeReaders() {
	for _, r := range s.readers {
		r.Close()
	}
}

// Close flushes and closes the active writer and every open reader.
func (s *Storage) Close() error {
	if s.closed {
		return ErrStorageClosed
	}
	s.closed = true

	s.log.Infow("closing storage", "activeGeneration", s.activeGen)

	var firstErr error
	if err := s.writer.Close(); err != nil {
		firstErr = err
	}
	for gen, r := range s.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.readers, gen)
	}
	return firstErr
}
