package locks

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithExclusive(t *testing.T) {
	t.Run("Returns Result", func(t *testing.T) {
		km := NewKeyedMutex()

		v, err := WithExclusive(km, "c1", func() (int, error) { return 42, nil })

		require.NoError(t, err)
		assert.Equal(t, 42, v)
		assert.Equal(t, 1, km.Size())
	})

	t.Run("Same Key Is Serialized", func(t *testing.T) {
		km := NewKeyedMutex()
		var inside, maxInside atomic.Int32
		counter := 0

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = km.Do("c1", func() error {
					n := inside.Add(1)
					for {
						m := maxInside.Load()
						if n <= m || maxInside.CompareAndSwap(m, n) {
							break
						}
					}
					counter++
					time.Sleep(time.Millisecond)
					inside.Add(-1)
					return nil
				})
			}()
		}
		wg.Wait()

		assert.Equal(t, int32(1), maxInside.Load())
		assert.Equal(t, 20, counter)
	})

	t.Run("Distinct Keys Run Concurrently", func(t *testing.T) {
		km := NewKeyedMutex()
		aEntered := make(chan struct{})
		bEntered := make(chan struct{})

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = km.Do("a", func() error {
				close(aEntered)
				select {
				case <-bEntered:
					return nil
				case <-time.After(2 * time.Second):
					return errors.New("b never entered while a was held")
				}
			})
		}()
		go func() {
			defer wg.Done()
			<-aEntered
			_ = km.Do("b", func() error {
				close(bEntered)
				return nil
			})
		}()
		wg.Wait()

		select {
		case <-bEntered:
		default:
			t.Fatal("critical section for b did not run")
		}
	})

	t.Run("Released After Error", func(t *testing.T) {
		km := NewKeyedMutex()
		boom := errors.New("boom")

		_, err := WithExclusive(km, "c1", func() (int, error) { return 0, boom })
		assert.ErrorIs(t, err, boom)

		v, err := WithExclusive(km, "c1", func() (string, error) { return "ok", nil })
		require.NoError(t, err)
		assert.Equal(t, "ok", v)
	})

	t.Run("Released After Panic", func(t *testing.T) {
		km := NewKeyedMutex()

		assert.Panics(t, func() {
			_ = km.Do("c1", func() error { panic("boom") })
		})

		done := make(chan struct{})
		go func() {
			_ = km.Do("c1", func() error { return nil })
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("lock was not released after panic")
		}
	})
}
