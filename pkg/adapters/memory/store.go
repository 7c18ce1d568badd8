// Package memory provides in-process adapters, mainly for tests and one-shot CLI runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/aretw0/quill/pkg/domain"
	"github.com/aretw0/quill/pkg/ports"
)

// Store implements ports.TranscriptStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]domain.MessageLog
	mu   sync.RWMutex
}

var _ ports.TranscriptStore = (*Store)(nil)

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]domain.MessageLog),
	}
}

// Save persists the transcript in memory.
// Logs are immutable values, so no copy is needed to isolate the store.
func (s *Store) Save(ctx context.Context, runID string, log domain.MessageLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[runID] = log
	return nil
}

// Load retrieves a transcript from memory.
func (s *Store) Load(ctx context.Context, runID string) (domain.MessageLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log, ok := s.data[runID]
	if !ok {
		return domain.MessageLog{}, domain.ErrRunNotFound
	}
	return log, nil
}

// Delete removes the transcript.
func (s *Store) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
	return nil
}

// List returns the stored run IDs, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
