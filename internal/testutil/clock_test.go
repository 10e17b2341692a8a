package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestStepClock_FirstReadingIsStart(t *testing.T) {
	clock := NewStepClock(epoch, time.Second)
	assert.Equal(t, int64(0), clock.Readings())
	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, int64(1), clock.Readings())
}

func TestStepClock_AdvancesByStep(t *testing.T) {
	clock := NewStepClock(epoch, time.Minute)

	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch.Add(time.Minute), clock.Now())
	assert.Equal(t, epoch.Add(2*time.Minute), clock.Now())
	assert.Equal(t, int64(3), clock.Readings())
}

func TestStepClock_Reset(t *testing.T) {
	clock := NewStepClock(epoch, time.Second)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, int64(0), clock.Readings())
	assert.Equal(t, epoch, clock.Now())
}

func TestStepClock_ThreadSafe(t *testing.T) {
	clock := NewStepClock(epoch, time.Millisecond)
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make([][]time.Time, numGoroutines)
	for i := range numGoroutines {
		results[i] = make([]time.Time, callsPerGoroutine)
		go func(idx int) {
			defer wg.Done()
			for j := range callsPerGoroutine {
				results[idx][j] = clock.Now()
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[time.Time]bool)
	for _, goroutineResults := range results {
		for _, ts := range goroutineResults {
			require.False(t, seen[ts], "duplicate reading %v", ts)
			seen[ts] = true
		}
	}
	assert.Len(t, seen, numGoroutines*callsPerGoroutine)
	assert.Equal(t, int64(numGoroutines*callsPerGoroutine), clock.Readings())
}
