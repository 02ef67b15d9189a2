// Package nvs implements a small non-volatile key store backed by a YAML
// partition file.
//
// The partition carries a format version. A partition written by a newer
// format, or one that can no longer be parsed, is reported with a dedicated
// error so that Init can erase it and start over, the same way flash-based
// key stores recover from a full or incompatible partition.
package nvs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/muurk/ledhttpd/internal/logging"
	"go.uber.org/zap"
)

// FormatVersion is the partition format written by this package.
const FormatVersion = 1

var (
	// ErrStorage classifies every failure reported by this package.
	ErrStorage = errors.New("storage error")

	// ErrNoFreePages is returned when the partition is unreadable.
	ErrNoFreePages = fmt.Errorf("no free pages: %w", ErrStorage)

	// ErrNewVersionFound is returned when the partition has a newer format.
	ErrNewVersionFound = fmt.Errorf("new version found: %w", ErrStorage)

	// ErrNotFound is returned by getters for a missing key.
	ErrNotFound = fmt.Errorf("key not found: %w", ErrStorage)

	// ErrClosed is returned when using a closed store.
	ErrClosed = fmt.Errorf("store closed: %w", ErrStorage)
)

type partition struct {
	Version int               `yaml:"version"`
	Entries map[string]uint32 `yaml:"entries,omitempty"`
}

// Store is an open partition. Writes are buffered until Commit.
type Store struct {
	mu     sync.Mutex
	path   string
	data   partition
	dirty  bool
	closed bool
}

// Open opens the partition at path, creating an empty one if the file does
// not exist.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty partition path: %w", ErrStorage)
	}

	s := &Store{
		path: path,
		data: partition{Version: FormatVersion, Entries: make(map[string]uint32)},
	}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		s.dirty = true
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read partition %s: %v: %w", path, err, ErrStorage)
	}

	var p partition
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse partition %s: %v: %w", path, err, ErrNoFreePages)
	}
	if p.Version > FormatVersion {
		return nil, fmt.Errorf("partition %s has version %d: %w", path, p.Version, ErrNewVersionFound)
	}
	if p.Version <= 0 {
		return nil, fmt.Errorf("partition %s has no version: %w", path, ErrNoFreePages)
	}
	if p.Entries == nil {
		p.Entries = make(map[string]uint32)
	}
	s.data = p
	return s, nil
}

// Init opens the partition and, if it is full or was written by a newer
// format, erases it and opens it again.
func Init(path string) (*Store, error) {
	s, err := Open(path)
	if errors.Is(err, ErrNoFreePages) || errors.Is(err, ErrNewVersionFound) {
		logging.Warn("Erasing key storage partition",
			zap.String("path", path),
			zap.Error(err),
		)
		if err := Erase(path); err != nil {
			return nil, err
		}
		s, err = Open(path)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Erase removes the partition file. Erasing a missing partition succeeds.
func Erase(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("erase partition %s: %v: %w", path, err, ErrStorage)
	}
	return nil
}

// Path returns the partition file path.
func (s *Store) Path() string {
	return s.path
}

// GetUint32 reads a value.
func (s *Store) GetUint32(key string) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}
	v, ok := s.data.Entries[key]
	if !ok {
		return 0, fmt.Errorf("%q: %w", key, ErrNotFound)
	}
	return v, nil
}

// SetUint32 buffers a write.
func (s *Store) SetUint32(key string, v uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if key == "" {
		return fmt.Errorf("empty key: %w", ErrStorage)
	}
	s.data.Entries[key] = v
	s.dirty = true
	return nil
}

// Commit writes buffered changes to disk atomically.
func (s *Store) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if !s.dirty {
		return nil
	}

	raw, err := yaml.Marshal(&s.data)
	if err != nil {
		return fmt.Errorf("encode partition: %v: %w", err, ErrStorage)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create partition dir: %v: %w", err, ErrStorage)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0600); err != nil {
		return fmt.Errorf("write partition: %v: %w", err, ErrStorage)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace partition: %v: %w", err, ErrStorage)
	}

	s.dirty = false
	return nil
}

// Close commits pending writes and closes the store. Closing twice is a no-op.
func (s *Store) Close() error {
	if err := s.Commit(); err != nil && !errors.Is(err, ErrClosed) {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// IncrementUint32 adds one to key (a missing key counts as zero), commits,
// and returns the new value.
func (s *Store) IncrementUint32(key string) (uint32, error) {
	v, err := s.GetUint32(key)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return 0, err
	}
	v++
	if err := s.SetUint32(key, v); err != nil {
		return 0, err
	}
	if err := s.Commit(); err != nil {
		return 0, err
	}
	return v, nil
}
