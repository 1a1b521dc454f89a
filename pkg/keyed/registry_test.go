package keyed

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetOrCreate(t *testing.T) {
	t.Run("Same Key Returns Same Value", func(t *testing.T) {
		r := New(func(key string) *int { v := len(key); return &v })

		a := r.GetOrCreate("alpha")
		b := r.GetOrCreate("alpha")

		assert.Same(t, a, b)
		assert.Equal(t, 1, r.Len())
	})

	t.Run("Distinct Keys Get Distinct Values", func(t *testing.T) {
		r := New(func(key string) *string { return &key })

		a := r.GetOrCreate("a")
		b := r.GetOrCreate("b")

		assert.NotSame(t, a, b)
		assert.Equal(t, 2, r.Len())
	})

	t.Run("Concurrent First Access Creates Once", func(t *testing.T) {
		var created atomic.Int32
		r := NewWithShards(4, func(string) *sync.Mutex {
			created.Add(1)
			return &sync.Mutex{}
		})

		const workers = 64
		results := make([]*sync.Mutex, workers)
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				<-start
				results[i] = r.GetOrCreate("customer-1")
			}(i)
		}
		close(start)
		wg.Wait()

		assert.Equal(t, int32(1), created.Load())
		for _, m := range results {
			assert.Same(t, results[0], m)
		}
	})
}
