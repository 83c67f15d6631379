// Package store provides the opaque key/value collaborator the orchestrator
// reads and writes through. The orchestrator never assumes anything about
// the shape of stored values beyond "bytes under a key".
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Errors for store operations.
var (
	ErrKeyNotFound  = errors.New("key not found")
	ErrEmptyKey     = errors.New("key cannot be empty")
	ErrStoreCorrupt = errors.New("store file corrupted")
)

// Store is the backing-store contract: read, write, delete by key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
}

// FileStore persists keys to a single JSON file with atomic writes.
type FileStore struct {
	mu       sync.RWMutex
	filePath string
	data     map[string][]byte
}

// NewFileStore creates a file-backed store at path. The parent directory
// is created with owner-only permissions; an existing file is loaded.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "remedyd", "store.json")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	s := &FileStore{
		filePath: path,
		data:     make(map[string][]byte),
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load store: %w", err)
	}

	return s, nil
}

// Get returns the value stored under key.
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

// Put stores value under key, overwriting any prior value.
func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[key] = stored
	return s.save()
}

// Delete removes key. Deleting a missing key is not an error.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return s.save()
}

// Keys returns all stored keys.
func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// load reads the store from disk.
func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var data map[string][]byte
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreCorrupt, err)
	}
	if data == nil {
		data = make(map[string][]byte)
	}
	s.data = data
	return nil
}

// save writes the store to disk atomically.
func (s *FileStore) save() error {
	raw, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, raw, 0600); err != nil {
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename store: %w", err)
	}
	return nil
}

// MemStore is an in-memory store for tests and dry runs.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

// Get returns the value stored under key.
func (m *MemStore) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
	}
	return value, nil
}

// Put stores value under key.
func (m *MemStore) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Delete removes key.
func (m *MemStore) Delete(ctx context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Keys returns all stored keys.
func (m *MemStore) Keys(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}
