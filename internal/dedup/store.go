// Package dedup guarantees each normalized article URL is scheduled at most
// once per run.
package dedup

import "sync"

// Store is a concurrency-safe set of admitted keys. One Store per run.
type Store struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// New returns an empty Store.
func New() *Store {
	return &Store{seen: make(map[string]struct{})}
}

// Admit inserts key and returns true only for the first caller with that key.
func (s *Store) Admit(key string) bool {
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[key]; ok {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Len returns the number of admitted keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
