// Package logctx holds ambient key/value context merged into every record.
//
// A Store is normally shared by every Logger of a process. Loggers that are
// not given a Store explicitly use Default, which is created on first access
// and lives until Reset.
package logctx

import (
	"maps"
	"sync"

	"github.com/predatorx7/logtopus/pkg/model"
)

// Store is a mutable key/value bag. Writers are last-write-wins.
type Store struct {
	mu     sync.RWMutex
	fields model.Fields
}

// New creates an empty store.
func New() *Store {
	return &Store{fields: model.Fields{}}
}

// Set replaces the whole context.
func (s *Store) Set(fields model.Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields = make(model.Fields, len(fields))
	maps.Copy(s.fields, fields)
}

// Add merges fields into the context.
func (s *Store) Add(fields model.Fields) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.Copy(s.fields, fields)
}

// Remove deletes keys from the context.
func (s *Store) Remove(keys ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.fields, k)
	}
}

// Clear empties the context.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.fields)
}

// Get returns a copy of the context. Mutating it does not affect the store.
func (s *Store) Get() model.Fields {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.fields)
}

// Len returns the number of keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.fields)
}

var (
	defaultMu    sync.Mutex
	defaultStore *Store
)

// Default returns the process-wide store, creating it on first use.
func Default() *Store {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultStore == nil {
		defaultStore = New()
	}
	return defaultStore
}

// Reset drops the process-wide store. The next Default call creates a fresh
// one; Loggers built earlier keep the store they were given.
func Reset() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultStore = nil
}
