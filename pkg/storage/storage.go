package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"swap-engine/pkg/types"
)

const (
	DefaultStorageFileName = ".swap-engine-quotes.json"
)

// QuoteStorage persists the best-quote cache as a single JSON document
type QuoteStorage struct {
	filePath string
	mu       sync.RWMutex
}

// QuoteFile represents the JSON structure on disk
type QuoteFile struct {
	Quotes map[string]*types.SwapQuote `json:"quotes"`
}

// NewQuoteStorage creates a storage instance. An empty path defaults to the home directory.
func NewQuoteStorage(filePath string) (*QuoteStorage, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultStorageFileName)
	}

	return &QuoteStorage{filePath: filePath}, nil
}

// Load reads the stored quotes. A missing file yields an empty map.
func (s *QuoteStorage) Load() (map[string]*types.SwapQuote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]*types.SwapQuote{}, nil
		}
		return nil, fmt.Errorf("failed to read quotes: %w", err)
	}

	var file QuoteFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quotes: %w", err)
	}
	if file.Quotes == nil {
		file.Quotes = map[string]*types.SwapQuote{}
	}
	return file.Quotes, nil
}

// Save replaces the stored quotes
func (s *QuoteStorage) Save(quotes map[string]*types.SwapQuote) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(QuoteFile{Quotes: quotes}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal quotes: %w", err)
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write quotes: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// Clear removes the storage file
func (s *QuoteStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove quotes: %w", err)
	}
	return nil
}

// FilePath returns the storage file path
func (s *QuoteStorage) FilePath() string {
	return s.filePath
}
