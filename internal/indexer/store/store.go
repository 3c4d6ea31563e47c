// Package store keeps the built indexes of the running process, keyed by
// collection name. Indexes are replaced whole, never mutated in place, so a
// Snapshot can be read after the lock is released.
package store

import (
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/inverted-index/internal/indexer/index"
)

// Snapshot is a shallow copy of the store: collection name to index.
type Snapshot map[string]index.Index

type Store struct {
	mu      sync.RWMutex
	indexes map[string]index.Index
}

func New() *Store {
	return &Store{indexes: make(map[string]index.Index)}
}

// Put stores idx under name, replacing any previous index for that name.
func (s *Store) Put(name string, idx index.Index) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexes[name] = idx
}

func (s *Store) Get(name string) (index.Index, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.indexes[name]
	return idx, ok
}

// Snapshot returns every stored collection.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := make(Snapshot, len(s.indexes))
	for name, idx := range s.indexes {
		snap[name] = idx
	}
	return snap
}

// Names returns the stored collection names in lexical order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.indexes))
	for name := range s.indexes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.indexes)
}
