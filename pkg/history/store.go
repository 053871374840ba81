// Package history persists submitted swaps as a JSON file.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/KyberNetwork/kyberswap-interface-sub001/pkg/types"
)

const DefaultFileName = ".kyberswap-xchain-history.json"

// ErrNotFound is returned for unknown swap ids
var ErrNotFound = errors.New("swap not found")

// Store keeps TxResults keyed by id
type Store struct {
	filePath string
	mu       sync.RWMutex
	swaps    map[string]types.TxResult
}

// fileFormat is the JSON structure on disk
type fileFormat struct {
	Swaps map[string]types.TxResult `json:"swaps"`
}

// NewStore opens the store at filePath, creating nothing until the first save
func NewStore(filePath string) (*Store, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultFileName)
	}

	s := &Store{
		filePath: filePath,
		swaps:    make(map[string]types.TxResult),
	}

	if err := s.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	return s, nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var stored fileFormat
	if err := json.Unmarshal(data, &stored); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}

	if stored.Swaps != nil {
		s.swaps = stored.Swaps
	}
	return nil
}

// saveLocked writes the file; callers hold s.mu
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(fileFormat{Swaps: s.swaps}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Save inserts or replaces a swap
func (s *Store) Save(tx types.TxResult) error {
	if tx.ID == "" {
		return fmt.Errorf("swap has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.swaps[tx.ID] = tx
	return s.saveLocked()
}

// Get returns the swap with id
func (s *Store) Get(id string) (types.TxResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.swaps[id]
	if !ok {
		return types.TxResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return tx, nil
}

// Update applies fn to the stored swap and persists the result
func (s *Store) Update(id string, fn func(tx *types.TxResult)) (types.TxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, ok := s.swaps[id]
	if !ok {
		return types.TxResult{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	fn(&tx)
	s.swaps[id] = tx
	return tx, s.saveLocked()
}

// List returns every swap, newest first
func (s *Store) List() []types.TxResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.TxResult, 0, len(s.swaps))
	for _, tx := range s.swaps {
		out = append(out, tx)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TimestampMs != out[j].TimestampMs {
			return out[i].TimestampMs > out[j].TimestampMs
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Pending returns the swaps without a terminal status
func (s *Store) Pending() []types.TxResult {
	var out []types.TxResult
	for _, tx := range s.List() {
		if !tx.Status.IsTerminal() {
			out = append(out, tx)
		}
	}
	return out
}

// Delete removes a swap
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.swaps[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.swaps, id)
	return s.saveLocked()
}
