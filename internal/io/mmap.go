package io

import (
	"io"
	"os"
	"sync"

	"golang.org/x/exp/mmap"
)

// MappedFile provides memory-mapped read access to a file.
// ReadAt is safe for concurrent use, including across a Refresh.
type MappedFile struct {
	mu     sync.RWMutex
	reader *mmap.ReaderAt
	size   int64
	path   string
}

// OpenMapped opens a file with memory mapping
func OpenMapped(path string) (*MappedFile, error) {
	reader, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	return &MappedFile{
		reader: reader,
		size:   int64(reader.Len()),
		path:   path,
	}, nil
}

// ReadAt reads len(p) bytes at offset
func (m *MappedFile) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if off > m.size {
		return 0, io.EOF
	}
	return m.reader.ReadAt(p, off)
}

// Size re-maps the file when its on-disk length changed and returns the
// current mapped length.
func (m *MappedFile) Size() (int64, error) {
	if _, err := m.Refresh(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.size, nil
}

// Path returns the file path
func (m *MappedFile) Path() string {
	return m.path
}

// Close closes the memory mapping
func (m *MappedFile) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reader.Close()
}

// Refresh re-opens the mapping if the file grew or shrank, returns true if
// the size changed.
func (m *MappedFile) Refresh() (bool, error) {
	info, err := os.Stat(m.path)
	if err != nil {
		return false, err
	}

	m.mu.RLock()
	unchanged := info.Size() == m.size
	m.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	reader, err := mmap.Open(m.path)
	if err != nil {
		return false, err
	}

	m.mu.Lock()
	old := m.reader
	m.reader = reader
	m.size = int64(reader.Len())
	m.mu.Unlock()

	return true, old.Close()
}
