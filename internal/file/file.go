package file

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const appDirPerm os.FileMode = 0o750

// DirState reports what EnsureDir found on disk.
type DirState int

const (
	DirCreated DirState = iota
	DirExisted
)

func (s DirState) String() string {
	if s == DirExisted {
		return "existed"
	}
	return "created"
}

// ErrNotDir is returned when a path component exists but is not a directory.
var ErrNotDir = errors.New("path exists and is not a directory")

// StageError describes a staging directory that could not be prepared.
type StageError struct {
	Dir string
	Err error
}

func (e *StageError) Error() string { return "ensure dir " + e.Dir + ": " + e.Err.Error() }

func (e *StageError) Unwrap() error { return e.Err }

// EnsureDir creates the directory and any missing parents. An already existing
// directory is reported as DirExisted, never as an error.
func EnsureDir(dirPath string) (DirState, error) {
	if dirPath == "" {
		return DirCreated, &StageError{Dir: dirPath, Err: errors.New("empty dir path")}
	}
	info, err := os.Stat(dirPath)
	switch {
	case err == nil && info.IsDir():
		return DirExisted, nil
	case err == nil:
		return DirCreated, &StageError{Dir: dirPath, Err: ErrNotDir}
	case !errors.Is(err, os.ErrNotExist):
		return DirCreated, &StageError{Dir: dirPath, Err: err}
	}
	if err := os.MkdirAll(dirPath, appDirPerm); err != nil { //nolint:gosec // app-owned staging dir
		return DirCreated, &StageError{Dir: dirPath, Err: err}
	}
	return DirCreated, nil
}

// EnsureParent prepares the directory that will hold filename.
func EnsureParent(filename string) (DirState, error) {
	return EnsureDir(filepath.Dir(filename))
}

// Exists reports whether a regular file is present at filename.
func Exists(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && info.Mode().IsRegular()
}

// RemoveIfExists deletes filename. A missing file is not an error.
func RemoveIfExists(filename string) error {
	if err := os.Remove(filename); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", filename, err)
	}
	return nil
}

// CopyAtomic writes data provided by the reader to the destination file atomically.
func CopyAtomic(filename string, reader io.Reader) error {
	if filename == "" {
		return errors.New("empty filename")
	}
	dir := filepath.Dir(filename)
	if _, err := EnsureDir(dir); err != nil {
		return err
	}
	tempFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	tmpName := tempFile.Name()
	if _, err := io.Copy(tempFile, reader); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("copy to temp: %w", err)
	}
	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Rename(tmpName, filename); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename temp: %w", err)
	}
	return nil
}
