// Package memory provides process-local storage backends. They back the
// persistent transports in tests and in environments without durable storage.
package memory

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/predatorx7/logtopus/pkg/model"
	"github.com/predatorx7/logtopus/pkg/storage"
)

// KeyValue is a map-backed storage.KeyValue.
type KeyValue struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewKeyValue() *KeyValue {
	return &KeyValue{data: make(map[string]string)}
}

func (s *KeyValue) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *KeyValue) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *KeyValue) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Indexed is a slice-backed storage.Indexed with auto-incrementing ids.
type Indexed struct {
	mu      sync.RWMutex
	entries []model.LogEntry // insertion order
	nextID  int64
	closed  bool
}

func NewIndexed() *Indexed {
	return &Indexed{nextID: 1}
}

// Opener returns a storage.Opener yielding s.
func (s *Indexed) Opener() storage.Opener {
	return func(context.Context) (storage.Indexed, error) { return s, nil }
}

func (s *Indexed) Add(_ context.Context, entry model.LogEntry) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry.ID = s.nextID
	s.nextID++
	s.entries = append(s.entries, entry)
	return entry.ID, nil
}

func (s *Indexed) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *Indexed) Oldest(_ context.Context, n int) ([]int64, error) {
	s.mu.RLock()
	sorted := slices.Clone(s.entries)
	s.mu.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})
	if n > len(sorted) {
		n = len(sorted)
	}
	ids := make([]int64, 0, n)
	for _, e := range sorted[:n] {
		ids = append(ids, e.ID)
	}
	return ids, nil
}

func (s *Indexed) Delete(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = slices.DeleteFunc(s.entries, func(e model.LogEntry) bool {
		return slices.Contains(ids, e.ID)
	})
	return nil
}

func (s *Indexed) Query(_ context.Context, params storage.QueryParams) ([]model.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []model.LogEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if storage.Match(s.entries[i], params) {
			results = append(results, s.entries[i])
		}
	}
	// newest-first by timestamp, ties broken by id
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Timestamp > results[j].Timestamp
	})
	if params.Limit > 0 && len(results) > params.Limit {
		results = results[:params.Limit]
	}
	return results, nil
}

func (s *Indexed) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

func (s *Indexed) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called.
func (s *Indexed) Closed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}
