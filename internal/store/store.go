// Package store provides a generic, thread-safe, in-memory record store with
// sequential integer IDs and offset pagination, used by the demo API.
package store

import (
	"sync"
	"sync/atomic"
)

// Store is a generic, thread-safe, in-memory store for records of type T.
type Store[T any] struct {
	mu      sync.RWMutex
	items   map[int]T
	order   []int // insertion order for deterministic listing
	counter atomic.Int64
}

// New creates an empty Store.
func New[T any]() *Store[T] {
	return &Store[T]{
		items: make(map[int]T),
		order: make([]int, 0),
	}
}

// NextID returns the next sequential ID, starting at 1.
func (s *Store[T]) NextID() int {
	return int(s.counter.Add(1))
}

// Set stores an item under id. Overwriting keeps the original position in the
// insertion order. IDs set explicitly above the counter advance it.
func (s *Store[T]) Set(id int, item T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[id]; !exists {
		s.order = append(s.order, id)
	}
	s.items[id] = item
	for {
		cur := s.counter.Load()
		if int64(id) <= cur || s.counter.CompareAndSwap(cur, int64(id)) {
			break
		}
	}
}

// Get retrieves an item by ID.
func (s *Store[T]) Get(id int) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Delete removes an item by ID and returns it.
func (s *Store[T]) Delete(id int) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, exists := s.items[id]
	if !exists {
		return item, false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return item, true
}

// List returns all items in insertion order.
func (s *Store[T]) List() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]T, 0, len(s.order))
	for _, id := range s.order {
		result = append(result, s.items[id])
	}
	return result
}

// Page is one window of a listing.
type Page[T any] struct {
	Items []T
	Total int
	Skip  int
	Limit int
}

// Paginate returns up to limit items after skipping skip of them. A limit of
// 0 or less returns everything after skip.
func (s *Store[T]) Paginate(skip, limit int) Page[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.order)
	if skip < 0 {
		skip = 0
	}
	if skip > total {
		skip = total
	}
	end := total
	if limit > 0 && limit < total-skip {
		end = skip + limit
	}

	items := make([]T, 0, end-skip)
	for _, id := range s.order[skip:end] {
		items = append(items, s.items[id])
	}
	return Page[T]{Items: items, Total: total, Skip: skip, Limit: len(items)}
}

// Count returns the number of items in the store.
func (s *Store[T]) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Find returns the first item, in insertion order, matching predicate.
func (s *Store[T]) Find(predicate func(id int, item T) bool) (T, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		if predicate(id, s.items[id]) {
			return s.items[id], true
		}
	}
	var zero T
	return zero, false
}

// Reset clears all items and resets the ID counter.
func (s *Store[T]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[int]T)
	s.order = make([]int, 0)
	s.counter.Store(0)
}
