// Package keyed provides a concurrent get-or-create registry of per-key values.
//
// Entries are spread over a fixed number of shards so that first access to
// different keys does not contend on one lock. Entries are never evicted.
package keyed

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

const defaultShards = 64

type shard[T any] struct {
	mu    sync.RWMutex
	items map[string]T
}

// Registry maps keys to lazily created values.
type Registry[T any] struct {
	shards []*shard[T]
	create func(key string) T
}

// New returns a registry that builds missing values with create.
func New[T any](create func(key string) T) *Registry[T] {
	return NewWithShards(defaultShards, create)
}

// NewWithShards is New with an explicit shard count.
func NewWithShards[T any](n int, create func(key string) T) *Registry[T] {
	if n <= 0 {
		n = defaultShards
	}
	r := &Registry[T]{shards: make([]*shard[T], n), create: create}
	for i := range r.shards {
		r.shards[i] = &shard[T]{items: make(map[string]T)}
	}
	return r
}

func (r *Registry[T]) shardFor(key string) *shard[T] {
	return r.shards[xxhash.Sum64String(key)%uint64(len(r.shards))]
}

// GetOrCreate returns the value for key, creating it exactly once.
func (r *Registry[T]) GetOrCreate(key string) T {
	s := r.shardFor(key)

	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// Another goroutine may have won the race between the two locks.
	if v, ok := s.items[key]; ok {
		return v
	}
	v = r.create(key)
	s.items[key] = v
	return v
}

// Len returns the number of keys held.
func (r *Registry[T]) Len() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}
