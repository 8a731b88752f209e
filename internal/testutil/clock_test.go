package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepClock_StartsAtEpoch(t *testing.T) {
	clock := NewStepClock(time.Second)
	assert.Equal(t, Epoch, clock.Now())
}

func TestStepClock_AdvancesByStep(t *testing.T) {
	clock := NewStepClock(10 * time.Millisecond)

	first := clock.Now()
	second := clock.Now()
	third := clock.Now()

	assert.Equal(t, 10*time.Millisecond, second.Sub(first))
	assert.Equal(t, 10*time.Millisecond, third.Sub(second))
	assert.Equal(t, third.Add(10*time.Millisecond), clock.Peek())
}

func TestStepClock_Set(t *testing.T) {
	clock := NewStepClock(time.Second)
	target := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(target)
	assert.Equal(t, target, clock.Now())
}

func TestStepClock_ConcurrentReadsAreUnique(t *testing.T) {
	clock := NewStepClock(time.Millisecond)

	const goroutines = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	seen := make(map[time.Time]bool)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ts := clock.Now()
			mu.Lock()
			seen[ts] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Len(t, seen, goroutines)
}

func TestSequenceIDs(t *testing.T) {
	ids := NewSequenceIDs("run")
	assert.Equal(t, "run-0001", ids.Generate())
	assert.Equal(t, "run-0002", ids.Generate())
}
