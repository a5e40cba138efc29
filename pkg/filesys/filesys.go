// Package filesys provides the small set of file system primitives the
// store needs: creating the data directory a store is rooted at.
package filesys

import (
	"errors"
	"os"
)

var ErrIsNotDir = errors.New("path isn't a directory")

// CreateDir creates a directory at the specified path with the given permissions.
//
// If the directory already exists:
//   - If 'force' is true, it proceeds without error.
//   - If 'force' is false, it returns the stat error.
//
// It also returns an error if the existing path is a file (not a directory).
func CreateDir(dirPath string, permission os.FileMode, force bool) error {
	stat, err := os.Stat(dirPath)
	if stat != nil && !stat.IsDir() {
		return ErrIsNotDir
	}

	if !force && !os.IsNotExist(err) {
		return err
	}

	if err := os.MkdirAll(dirPath, permission); err != nil {
		return err
	}

	return os.Chmod(dirPath, permission)
}
