// Package eeprom provides the persistent block storage the controller writes
// its constants and settings to, and the Manager that lays the records out.
//
// Storage is addressed like the EEPROM it replaces: blocks at byte offsets,
// reading 0xFF where nothing was written.
package eeprom

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
)

// Blank is the value of unwritten storage.
const Blank byte = 0xFF

var (
	// ErrOutOfRange is returned for blocks outside the storage.
	ErrOutOfRange = errors.New("eeprom: block out of range")
	// ErrBlockSize is returned when a stored block has a different size than
	// requested.
	ErrBlockSize = errors.New("eeprom: block size mismatch")
)

func blank(n int) []byte {
	return bytes.Repeat([]byte{Blank}, n)
}

func checkRange(offset, n, size int) error {
	if offset < 0 || n < 0 || offset+n > size {
		return fmt.Errorf("%w: [%d, %d) of %d bytes", ErrOutOfRange, offset, offset+n, size)
	}
	return nil
}

// Memory is a volatile storage, used with --simulate and in tests.
type Memory struct {
	mu     sync.Mutex
	data   []byte
	writes int
}

// NewMemory returns a blank storage of size bytes.
func NewMemory(size int) *Memory {
	return &Memory{data: blank(size)}
}

// ReadBlock returns a copy of size bytes at offset.
func (m *Memory) ReadBlock(offset, size int) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange(offset, size, len(m.data)); err != nil {
		return nil, err
	}
	return append([]byte(nil), m.data[offset:offset+size]...), nil
}

// WriteBlock stores data at offset.
func (m *Memory) WriteBlock(offset int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := checkRange(offset, len(data), len(m.data)); err != nil {
		return err
	}
	copy(m.data[offset:], data)
	m.writes++
	return nil
}

// Writes returns the number of successful WriteBlock calls.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
