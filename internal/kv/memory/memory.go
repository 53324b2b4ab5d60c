package memory

import (
	"context"
	"sync"

	"laba/internal/kv"
)

// Store is a process-local kv.Store. Contents are lost on exit.
type Store struct {
	mu    sync.Mutex
	items map[string]string
}

func New() *Store {
	return &Store{items: map[string]string{}}
}

// NewWithData seeds the store with a copy of data.
func NewWithData(data map[string]string) *Store {
	s := New()
	for k, v := range data {
		s.items[k] = v
	}
	return s
}

// Read implements kv.Reader.
func (s *Store) Read(_ context.Context, keys ...string) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := s.items[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// Write implements kv.Writer. Deletes are applied after sets.
func (s *Store) Write(_ context.Context, b kv.Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range b.Set {
		s.items[k] = v
	}
	for _, k := range b.Delete {
		delete(s.items, k)
	}
	return nil
}

// Snapshot returns a copy of everything stored.
func (s *Store) Snapshot() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.items))
	for k, v := range s.items {
		out[k] = v
	}
	return out
}
