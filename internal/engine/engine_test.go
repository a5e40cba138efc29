package engine

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/embedkv/kvs/internal/codec"
	"github.com/embedkv/kvs/internal/logio"
	"github.com/embedkv/kvs/pkg/errors"
	"github.com/embedkv/kvs/pkg/logger"
	"github.com/embedkv/kvs/pkg/options"
)

func newTestEngine(t *testing.T, dir string) *Engine {
	t.Helper()
	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	e, err := New(context.Background(), &Config{Options: &opts, Logger: logger.Noop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestSetAndGet(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()

	if err := e.Set("k1", "v1"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, ok, err := e.Get("k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok || v != "v1" {
		t.Fatalf("expected (v1, true), got (%q, %v)", v, ok)
	}
}

func TestOverwrite(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()

	if err := e.Set("k", "a"); err != nil {
		t.Fatalf("Set a: %v", err)
	}
	if err := e.Set("k", "b"); err != nil {
		t.Fatalf("Set b: %v", err)
	}
	v, ok, err := e.Get("k")
	if err != nil || !ok || v != "b" {
		t.Fatalf("expected (b, true), got (%q, %v, %v)", v, ok, err)
	}
}

func TestRemove(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()

	if err := e.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e.Remove("k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	_, ok, err := e.Get("k")
	if err != nil {
		t.Fatalf("Get after remove: %v", err)
	}
	if ok {
		t.Fatalf("expected key to be gone after remove")
	}

	err = e.Remove("k")
	if !errors.IsNonExistentKey(err) {
		t.Fatalf("expected NonExistentKey removing an already-removed key, got %v", err)
	}
}

func TestGetMissingKeyIsNotAnError(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()

	_, ok, err := e.Get("nope")
	if err != nil || ok {
		t.Fatalf("expected (false, nil) for missing key, got (%v, %v)", ok, err)
	}
}

func TestPersistenceAcrossCloseAndReopen(t *testing.T) {
	dir := t.TempDir()

	e1 := newTestEngine(t, dir)
	if err := e1.Set("a", "1"); err != nil {
		t.Fatalf("Set a: %v", err)
	}
	if err := e1.Set("b", "2"); err != nil {
		t.Fatalf("Set b: %v", err)
	}
	if err := e1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e2 := newTestEngine(t, dir)
	defer e2.Close()

	for k, want := range map[string]string{"a": "1", "b": "2"} {
		v, ok, err := e2.Get(k)
		if err != nil || !ok || v != want {
			t.Fatalf("Get(%q) = (%q, %v, %v), want (%q, true, nil)", k, v, ok, err, want)
		}
	}
}

func TestRemoveSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	e1 := newTestEngine(t, dir)
	if err := e1.Set("k", "v"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := e1.Remove("k"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := e1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	e2 := newTestEngine(t, dir)
	defer e2.Close()
	_, ok, err := e2.Get("k")
	if err != nil || ok {
		t.Fatalf("expected removed key to stay absent after reopen, got (%v, %v)", ok, err)
	}
}

func TestCompactionTriggersAndPreservesValues(t *testing.T) {
	dir := t.TempDir()
	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	opts.CompactionThreshold = options.MinCompactionThreshold

	e, err := New(context.Background(), &Config{Options: &opts, Logger: logger.Noop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	longValue := strings.Repeat("x", 1024)
	for i := 0; i < 200; i++ {
		if err := e.Set("k", longValue); err != nil {
			t.Fatalf("Set #%d: %v", i, err)
		}
	}

	v, ok, err := e.Get("k")
	if err != nil || !ok || v != longValue {
		t.Fatalf("expected final value to survive compaction, got ok=%v err=%v", ok, err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	// 200 overwrites of the same key at ~1KiB each vastly exceeds the
	// minimum compaction threshold, so at least one compaction pass
	// must have run and pruned the superseded records — the bytes left
	// on disk must be well below the cumulative write volume.
	var total int64
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			t.Fatalf("Info: %v", err)
		}
		total += info.Size()
	}
	written := int64(200 * len(longValue))
	if total >= written/2 {
		t.Fatalf("expected compaction to shrink the directory well below %d written bytes, got %d bytes", written, total)
	}
}

func TestCompactPreservesObservableState(t *testing.T) {
	dir := t.TempDir()
	e := newTestEngine(t, dir)
	defer e.Close()

	want := map[string]string{"a": "1", "b": "2", "c": "3"}
	for k, v := range want {
		if err := e.Set(k, v); err != nil {
			t.Fatalf("Set(%q): %v", k, err)
		}
	}
	if err := e.Set("d", "4"); err != nil {
		t.Fatalf("Set d: %v", err)
	}
	if err := e.Remove("d"); err != nil {
		t.Fatalf("Remove d: %v", err)
	}

	if err := e.Compact(); err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if e.Uncompacted() != 0 {
		t.Fatalf("expected Uncompacted()=0 after Compact, got %d", e.Uncompacted())
	}

	for k, v := range want {
		got, ok, err := e.Get(k)
		if err != nil || !ok || got != v {
			t.Fatalf("Get(%q) after compact = (%q, %v, %v), want (%q, true, nil)", k, got, ok, err, v)
		}
	}
	if _, ok, err := e.Get("d"); err != nil || ok {
		t.Fatalf("expected removed key d to stay absent after compact, got (%v, %v)", ok, err)
	}
}

// TestRecoveryFromTruncatedCompactionOutput exercises spec scenario 6: a
// complete old generation alongside a truncated generation left behind by
// a process that crashed mid-compaction. Open must still succeed and every
// key from the complete generation must remain readable.
func TestRecoveryFromTruncatedCompactionOutput(t *testing.T) {
	dir := t.TempDir()

	// Generation 5: a complete, valid log with two keys set.
	w, err := logio.CreateWriter(dir, 5)
	if err != nil {
		t.Fatalf("CreateWriter(5): %v", err)
	}
	for _, rec := range []codec.Record{
		codec.NewSetRecord("alpha", "one"),
		codec.NewSetRecord("beta", "two"),
	} {
		b, err := codec.Encode(rec)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		if _, err := w.Write(b); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close(5): %v", err)
	}

	// Generation 7: a truncated compaction output — a valid record
	// followed by a partial one, as a crash mid-write would leave.
	w7, err := logio.CreateWriter(dir, 7)
	if err != nil {
		t.Fatalf("CreateWriter(7): %v", err)
	}
	full, err := codec.Encode(codec.NewSetRecord("alpha", "one"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := w7.Write(full); err != nil {
		t.Fatalf("Write full: %v", err)
	}
	partial, err := codec.Encode(codec.NewSetRecord("beta", "two"))
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := w7.Write(partial[:len(partial)/2]); err != nil {
		t.Fatalf("Write partial: %v", err)
	}
	if err := w7.Close(); err != nil {
		t.Fatalf("Close(7): %v", err)
	}

	opts := options.NewDefaultOptions()
	opts.DataDir = dir
	e, err := New(context.Background(), &Config{Options: &opts, Logger: logger.Noop()})
	if err != nil {
		t.Fatalf("expected Open to tolerate a truncated trailing record, got %v", err)
	}
	defer e.Close()

	for k, want := range map[string]string{"alpha": "one", "beta": "two"} {
		got, ok, err := e.Get(k)
		if err != nil || !ok || got != want {
			t.Fatalf("Get(%q) = (%q, %v, %v), want (%q, true, nil)", k, got, ok, err, want)
		}
	}
}

func TestEngineClosedRejectsOperations(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := e.Set("k", "v"); err != ErrEngineClosed {
		t.Fatalf("expected ErrEngineClosed, got %v", err)
	}
	if err := e.Close(); err != ErrEngineClosed {
		t.Fatalf("expected second Close to report ErrEngineClosed, got %v", err)
	}
}

func TestSetRejectsEmptyKeyOrValue(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()

	if err := e.Set("", "v"); !errors.IsValidationError(err) {
		t.Fatalf("expected ValidationError for empty key, got %v", err)
	}
	if err := e.Set("k", ""); !errors.IsValidationError(err) {
		t.Fatalf("expected ValidationError for empty value, got %v", err)
	}
}

func TestSetAndRemoveRejectInvalidUTF8Key(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()

	badKey := string([]byte{0xff, 0xfe})
	if err := e.Set(badKey, "v"); !errors.IsValidationError(err) {
		t.Fatalf("expected ValidationError for invalid UTF-8 key, got %v", err)
	}
	if err := e.Set("k", badKey); !errors.IsValidationError(err) {
		t.Fatalf("expected ValidationError for invalid UTF-8 value, got %v", err)
	}
	if err := e.Remove(badKey); !errors.IsValidationError(err) {
		t.Fatalf("expected ValidationError for invalid UTF-8 key, got %v", err)
	}
}

func TestRemoveRejectsEmptyKey(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()

	if err := e.Remove(""); !errors.IsValidationError(err) {
		t.Fatalf("expected ValidationError for empty key, got %v", err)
	}
}

func TestGetRejectsEmptyKey(t *testing.T) {
	e := newTestEngine(t, t.TempDir())
	defer e.Close()

	if _, _, err := e.Get(""); !errors.IsValidationError(err) {
		t.Fatalf("expected ValidationError for empty key, got %v", err)
	}
}

func TestNewRejectsCompactionThresholdBelowMinimum(t *testing.T) {
	opts := options.NewDefaultOptions()
	opts.DataDir = t.TempDir()
	opts.CompactionThreshold = options.MinCompactionThreshold - 1

	_, err := New(context.Background(), &Config{Options: &opts, Logger: logger.Noop()})
	if !errors.IsValidationError(err) {
		t.Fatalf("expected ValidationError for sub-minimum CompactionThreshold, got %v", err)
	}
}

func TestSetWithSyncWritesSucceeds(t *testing.T) {
	opts := options.NewDefaultOptions()
	opts.DataDir = t.TempDir()
	opts.SyncWrites = true

	e, err := New(context.Background(), &Config{Options: &opts, Logger: logger.Noop()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer e.Close()

	if err := e.Set("k", "v"); err != nil {
		t.Fatalf("Set with SyncWrites: %v", err)
	}
	v, ok, err := e.Get("k")
	if err != nil || !ok || v != "v" {
		t.Fatalf("expected (v, true, nil), got (%q, %v, %v)", v, ok, err)
	}
}

func TestNewRejectsMissingConfig(t *testing.T) {
	if _, err := New(context.Background(), nil); !errors.IsValidationError(err) {
		t.Fatalf("expected ValidationError for nil config, got %v", err)
	}
	opts := options.NewDefaultOptions()
	if _, err := New(context.Background(), &Config{Options: &opts}); !errors.IsValidationError(err) {
		t.Fatalf("expected ValidationError for missing logger, got %v", err)
	}
}
