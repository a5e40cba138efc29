package logio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	kvserrors "github.com/embedkv/kvs/pkg/errors"
)

// logExtension is the suffix every generation log file carries. The
// directory holds nothing else; there is no manifest or header file.
const logExtension = ".log"

// LogPath returns the path of the generation log file for gen within dir.
func LogPath(dir string, gen int64) string {
	return filepath.Join(dir, strconv.FormatInt(gen, 10)+logExtension)
}

// ListGenerations scans dir for generation log files and returns their
// generation numbers in ascending order. A non-numeric or malformed
// filename is skipped rather than treated as an error — the directory
// contract is "only files this package wrote", but a defensive scan
// costs nothing.
func ListGenerations(dir string) ([]int64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, kvserrors.NewIOError(err, "failed to list generation log files").WithPath(dir)
	}

	var gens []int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, logExtension) {
			continue
		}
		trimmed := strings.TrimSuffix(name, logExtension)
		gen, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			continue
		}
		gens = append(gens, gen)
	}

	sort.Slice(gens, func(i, j int) bool { return gens[i] < gens[j] })
	return gens, nil
}

// OpenReader opens the generation log file for gen for buffered
// sequential or random-offset reading.
func OpenReader(dir string, gen int64) (*PositionedReader, error) {
	path := LogPath(dir, gen)
	f, err := os.Open(path)
	if err != nil {
		return nil, kvserrors.ClassifyFileOpenError(err, path, gen)
	}
	r, err := NewPositionedReader(f)
	if err != nil {
		f.Close()
		return nil, kvserrors.NewIOError(err, "failed to seek new generation log reader").
			WithPath(path).WithGeneration(gen)
	}
	return r, nil
}

// CreateWriter creates the generation log file for gen, or opens it for
// append with its existing contents kept, and returns a writer
// positioned at its end.
func CreateWriter(dir string, gen int64) (*PositionedWriter, error) {
	path := LogPath(dir, gen)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, kvserrors.ClassifyFileOpenError(err, path, gen)
	}
	w, err := NewPositionedWriter(f)
	if err != nil {
		f.Close()
		return nil, kvserrors.NewIOError(err, "failed to seek new generation log writer").
			WithPath(path).WithGeneration(gen)
	}
	return w, nil
}

// RemoveLog deletes the generation log file for gen. Callers must drop
// any open reader for gen before calling this — deleting a file still
// open elsewhere is fine on POSIX but leaves a dangling fd accounted to
// nobody, and on some platforms it would fail outright.
func RemoveLog(dir string, gen int64) error {
	path := LogPath(dir, gen)
	if err := os.Remove(path); err != nil {
		return kvserrors.NewIOError(err, fmt.Sprintf("failed to remove stale generation %d", gen)).
			WithPath(path).WithGeneration(gen)
	}
	return nil
}
