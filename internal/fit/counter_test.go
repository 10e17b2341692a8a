package fit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCounter_StartsAtZero(t *testing.T) {
	c := NewCounter()
	assert.Equal(t, int64(0), c.Current())
}

func TestCounter_NewCounterAt(t *testing.T) {
	c := NewCounterAt(41)
	assert.Equal(t, int64(42), c.Next())
}

func TestCounter_NextIncrements(t *testing.T) {
	c := NewCounter()
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestCounter_ConcurrentUnique(t *testing.T) {
	c := NewCounter()
	const workers, calls = 50, 100

	var wg sync.WaitGroup
	seqs := make(chan int64, workers*calls)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				seqs <- c.Next()
			}
		}()
	}
	wg.Wait()
	close(seqs)

	seen := make(map[int64]bool)
	for s := range seqs {
		assert.False(t, seen[s], "seq %d issued twice", s)
		seen[s] = true
	}
	assert.Len(t, seen, workers*calls)
	assert.Equal(t, int64(workers*calls), c.Current())
}
