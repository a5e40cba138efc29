package compaction

import (
	"context"
	"os"
	"testing"

	"github.com/embedkv/kvs/internal/codec"
	"github.com/embedkv/kvs/internal/index"
	"github.com/embedkv/kvs/internal/logio"
	"github.com/embedkv/kvs/internal/storage"
	"github.com/embedkv/kvs/pkg/logger"
	"github.com/embedkv/kvs/pkg/options"
)

// writeRecord appends rec to store's active writer and mirrors the
// resulting pointer into idx, the same bookkeeping Set performs.
func writeRecord(t *testing.T, store *storage.Storage, idx *index.Index, rec codec.Record) {
	t.Helper()
	w := store.Writer()
	pos := w.Pos()

	b, err := codec.Encode(rec)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := w.Write(b); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	if rec.Kind == codec.KindSet {
		idx.Insert(rec.Key, index.Pointer{Generation: store.ActiveGeneration(), Offset: pos, Length: w.Pos() - pos})
	} else {
		idx.Delete(rec.Key)
	}
}

func TestRunRelocatesLiveRecordsAndPrunesOldGenerations(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	opts := options.NewDefaultOptions()
	opts.DataDir = dir

	store, err := storage.New(ctx, &storage.Config{DataDir: dir, Options: &opts, Logger: logger.Noop()})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer store.Close()

	idx, err := index.New(ctx, &index.Config{DataDir: dir, Logger: logger.Noop()})
	if err != nil {
		t.Fatalf("index.New: %v", err)
	}

	writeRecord(t, store, idx, codec.NewSetRecord("a", "1"))
	writeRecord(t, store, idx, codec.NewSetRecord("b", "2"))
	writeRecord(t, store, idx, codec.NewSetRecord("a", "1-updated"))
	writeRecord(t, store, idx, codec.NewSetRecord("c", "3"))
	writeRecord(t, store, idx, codec.NewRemoveRecord("c"))

	priorActive := store.ActiveGeneration()

	comp, err := New(&Config{Storage: store, Index: idx, Logger: logger.Noop()})
	if err != nil {
		t.Fatalf("compaction.New: %v", err)
	}
	newActive, err := comp.Run()
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if newActive != priorActive+2 {
		t.Fatalf("expected new active generation %d, got %d", priorActive+2, newActive)
	}
	if newActive != store.ActiveGeneration() {
		t.Fatalf("expected storage's active generation to reflect the compaction result")
	}

	// Every live key must still resolve to its correct value, and every
	// pointer must now live in the compaction generation.
	compactionGen := priorActive + 1
	want := map[string]string{"a": "1-updated", "b": "2"}
	for k, v := range want {
		ptr, ok := idx.Lookup(k)
		if !ok {
			t.Fatalf("expected key %q to survive compaction", k)
		}
		if ptr.Generation != compactionGen {
			t.Fatalf("expected key %q relocated to generation %d, got %d", k, compactionGen, ptr.Generation)
		}
		reader, ok := store.Reader(ptr.Generation)
		if !ok {
			t.Fatalf("expected a reader for compaction generation %d", ptr.Generation)
		}
		buf := make([]byte, ptr.Length)
		if err := reader.ReadAt(buf, ptr.Offset); err != nil {
			t.Fatalf("ReadAt: %v", err)
		}
		rec, err := codec.DecodeOne(buf)
		if err != nil {
			t.Fatalf("DecodeOne: %v", err)
		}
		if rec.Value != v {
			t.Fatalf("key %q: expected value %q, got %q", k, v, rec.Value)
		}
	}

	if _, ok := idx.Lookup("c"); ok {
		t.Fatalf("expected removed key c to stay absent after compaction")
	}

	// The generation that was active before compaction held every
	// record above and is now fully superseded; it must be pruned.
	if _, ok := store.Reader(priorActive); ok {
		t.Fatalf("expected prior active generation %d to be pruned", priorActive)
	}
	if _, err := os.Stat(logio.LogPath(dir, priorActive)); !os.IsNotExist(err) {
		t.Fatalf("expected prior active generation's file to be removed from disk")
	}
}
