package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps entries in process memory. Used by tests and single-shot
// runs without a cache directory.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*Entry)}
}

// Get returns the entry for key, or (nil, nil) on a miss.
func (s *MemoryStore) Get(_ context.Context, key string) (*Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok {
		return nil, nil
	}
	// Copy the blob so callers cannot mutate the stored payload.
	blob := make([]byte, len(entry.Blob))
	copy(blob, entry.Blob)
	out := *entry
	out.Blob = blob
	return &out, nil
}

// Put stores the entry unless the key already exists. The mutex serializes
// racing writers, so exactly one wins.
func (s *MemoryStore) Put(_ context.Context, entry *Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[entry.Key]; exists {
		return false, nil
	}
	blob := make([]byte, len(entry.Blob))
	copy(blob, entry.Blob)
	stored := *entry
	stored.Blob = blob
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.entries[entry.Key] = &stored
	return true, nil
}
