package token

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

const (
	DefaultStoreFileName = ".tokenflight-cache.json"
)

// FileStore persists entries as a single JSON document
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	entries  map[string]json.RawMessage
}

// fileDocument represents the JSON structure on disk
type fileDocument struct {
	Entries map[string]json.RawMessage `json:"entries"`
}

// NewFileStore opens the store at filePath, defaulting to the home directory
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStoreFileName)
	}

	store := &FileStore{
		filePath: filePath,
		entries:  make(map[string]json.RawMessage),
	}

	// A missing file is created on first write
	if err := store.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load cache file: %w", err)
	}

	return store, nil
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to unmarshal cache file: %w", err)
	}

	s.entries = doc.Entries
	if s.entries == nil {
		s.entries = make(map[string]json.RawMessage)
	}
	return nil
}

// save writes the document atomically; callers hold s.mu
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(fileDocument{Entries: s.entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (s *FileStore) Get(key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.entries[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

// Set stores value, which must be valid JSON
func (s *FileStore) Set(key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = append(json.RawMessage(nil), value...)
	return s.save()
}

func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		return nil
	}
	delete(s.entries, key)
	return s.save()
}

func (s *FileStore) Keys(prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Path returns the backing file path
func (s *FileStore) Path() string {
	return s.filePath
}
