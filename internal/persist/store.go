// Package persist saves and loads buffer stores. A store is persisted as a
// single document: an ordered list of named buffers, each an ordered list of
// (timestamp, payload) pairs.
package persist

import (
	"context"
	"errors"
	"sort"
	"sync"

	"facecapture/internal/capture"
)

// ErrStoreNotFound is returned by Load when no store has the given name.
var ErrStoreNotFound = errors.New("buffer store not found")

// Store is the persistence abstraction for buffer stores.
// Implementations can be in-memory, file-based, or remote; callers do not
// need to know which one is used.
type Store interface {
	Load(ctx context.Context, name string) (*capture.BufferStore, error)
	Save(ctx context.Context, store *capture.BufferStore) error
	List(ctx context.Context) ([]string, error)
}

// InMemoryStore is an in-memory implementation of Store. It keeps encoded
// documents so a loaded store never aliases a saved one.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

// NewInMemoryStore returns a new empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		docs: make(map[string][]byte),
	}
}

// Load implements Store.Load.
func (s *InMemoryStore) Load(_ context.Context, name string) (*capture.BufferStore, error) {
	s.mu.RLock()
	data, ok := s.docs[name]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrStoreNotFound
	}
	return decodeAs(name, data)
}

// Save implements Store.Save.
func (s *InMemoryStore) Save(_ context.Context, store *capture.BufferStore) error {
	data, err := Encode(store)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.docs[store.Name()] = data
	s.mu.Unlock()
	return nil
}

// List implements Store.List. Names are sorted.
func (s *InMemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.docs))
	for name := range s.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
