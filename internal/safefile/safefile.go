// Package safefile opens files that must be plain regular files.
package safefile

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNotRegularFile is returned for symlinks, FIFOs, devices, sockets and
// directories.
var ErrNotRegularFile = errors.New("not a regular file")

// Position is where the returned file's read offset is placed.
type Position int

const (
	// Start leaves the offset at the beginning of the file.
	Start Position = iota
	// End moves the offset to the current end of the file, so that only
	// data appended afterwards is read.
	End
)

// Open opens path for reading after checking that it is a regular file.
//
// The path is checked with Lstat before opening and the descriptor is
// checked again with Stat afterwards, which narrows the window in which the
// file could be swapped for a symlink or special file.
//
// The caller must close the returned file.
func Open(path string, pos Position) (*os.File, os.FileInfo, error) {
	linkInfo, err := os.Lstat(path)
	if err != nil {
		return nil, nil, err
	}
	if !linkInfo.Mode().IsRegular() {
		return nil, nil, ErrNotRegularFile
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, ErrNotRegularFile
	}

	if pos == End {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return nil, nil, fmt.Errorf("seek to end: %w", err)
		}
	}

	return f, info, nil
}

// ReadAll reads a regular file of at most maxSize bytes.
// Files that are empty or grow past maxSize while being read are rejected.
func ReadAll(path string, maxSize int64) ([]byte, error) {
	f, info, err := Open(path, Start)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if info.Size() == 0 {
		return nil, errors.New("file is empty")
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), maxSize)
	}

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", len(data), maxSize)
	}
	return data, nil
}
