package eeprom

import (
	"fmt"
	"os"
	"sync"
)

// File is a storage image of fixed size on disk. Every write is synced.
type File struct {
	mu   sync.Mutex
	f    *os.File
	size int
}

// OpenFile opens or creates the image at path. A new or short image is padded
// with Blank up to size.
func OpenFile(path string, size int) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open eeprom image %q: %w", path, err)
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat eeprom image %q: %w", path, err)
	}
	if n := int(st.Size()); n < size {
		if _, err := f.WriteAt(blank(size-n), int64(n)); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("pad eeprom image %q: %w", path, err)
		}
		if err := f.Sync(); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("sync eeprom image %q: %w", path, err)
		}
	}
	return &File{f: f, size: size}, nil
}

// ReadBlock reads size bytes at offset.
func (s *File) ReadBlock(offset, size int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkRange(offset, size, s.size); err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := s.f.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("read %d bytes at %d: %w", size, offset, err)
	}
	return buf, nil
}

// WriteBlock writes data at offset and syncs the image.
func (s *File) WriteBlock(offset int, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := checkRange(offset, len(data), s.size); err != nil {
		return err
	}
	if _, err := s.f.WriteAt(data, int64(offset)); err != nil {
		return fmt.Errorf("write %d bytes at %d: %w", len(data), offset, err)
	}
	return s.f.Sync()
}

// Close closes the image.
func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
