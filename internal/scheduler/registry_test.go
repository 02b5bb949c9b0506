package scheduler

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistry_TryAddOnce(t *testing.T) {
	r := NewRegistry()

	assert.True(t, r.TryAdd(1))
	assert.False(t, r.TryAdd(1))
	assert.True(t, r.TryAdd(2))
	assert.Equal(t, []int64{1, 2}, r.IDs())

	r.Remove(1)
	assert.False(t, r.Has(1))
	assert.True(t, r.TryAdd(1))
	assert.Equal(t, 2, r.Len())
}

func TestRegistry_ConcurrentTryAdd(t *testing.T) {
	r := NewRegistry()
	var wins atomic.Int32
	var wg sync.WaitGroup

	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryAdd(7) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, []int64{7}, r.IDs())
}
