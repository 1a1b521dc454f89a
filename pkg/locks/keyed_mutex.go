// Package locks provides per-key exclusive execution regions.
package locks

import (
	"sync"

	"github.com/chris/payment-decisions/pkg/keyed"
)

// KeyedMutex lazily creates one mutex per key. Mutexes are kept for the
// life of the process.
type KeyedMutex struct {
	registry *keyed.Registry[*sync.Mutex]
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{
		registry: keyed.New(func(string) *sync.Mutex { return &sync.Mutex{} }),
	}
}

// Do runs fn while holding key's lock. The lock is released when fn returns,
// fails or panics.
func (k *KeyedMutex) Do(key string, fn func() error) error {
	_, err := WithExclusive(k, key, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Size returns the number of keys that have been locked at least once.
func (k *KeyedMutex) Size() int {
	return k.registry.Len()
}

// WithExclusive runs fn while holding key's lock and returns fn's result.
// Critical sections for the same key never overlap; different keys run concurrently.
func WithExclusive[T any](k *KeyedMutex, key string, fn func() (T, error)) (T, error) {
	m := k.registry.GetOrCreate(key)
	m.Lock()
	defer m.Unlock()
	return fn()
}
