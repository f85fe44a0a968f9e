package io

import (
	"fmt"
	"io"
	"math"
	"os"
)

// Backend is a read-only, possibly growing byte source. ReadAt must be safe
// for concurrent use so every task can own an independent stream over it.
type Backend interface {
	io.ReaderAt
	Size() (int64, error)
	Path() string
	Close() error
}

// PlainFile reads through a regular file descriptor.
type PlainFile struct {
	file *os.File
	path string
}

// OpenFile opens path read-only.
func OpenFile(path string) (*PlainFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &PlainFile{file: f, path: path}, nil
}

// ReadAt reads len(p) bytes at offset
func (p *PlainFile) ReadAt(b []byte, off int64) (int, error) {
	return p.file.ReadAt(b, off)
}

// Size returns the current on-disk length
func (p *PlainFile) Size() (int64, error) {
	info, err := p.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Path returns the file path
func (p *PlainFile) Path() string {
	return p.path
}

// Close closes the file
func (p *PlainFile) Close() error {
	return p.file.Close()
}

// Open picks the mapped or plain backend.
func Open(path string, mapped bool) (Backend, error) {
	if mapped {
		m, err := OpenMapped(path)
		if err != nil {
			return nil, fmt.Errorf("map %s: %w", path, err)
		}
		return m, nil
	}
	f, err := OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}

// NewStream returns an independent seekable view over b positioned at 0.
// The view is unbounded so growth of the underlying file stays visible.
func NewStream(b io.ReaderAt) io.ReadSeeker {
	return io.NewSectionReader(b, 0, math.MaxInt64)
}
