package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_Sequence(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Zero(t, clock.Ticks())

	created := clock.Now()
	modified := clock.Now()

	assert.Equal(t, Epoch.Add(time.Second), created)
	assert.Equal(t, Epoch.Add(2*time.Second), modified)
	assert.True(t, modified.After(created))
	assert.Equal(t, int64(2), clock.Ticks())
}

func TestDeterministicClock_Reset(t *testing.T) {
	clock := NewDeterministicClock()
	first := clock.Now()
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Zero(t, clock.Ticks())
	assert.Equal(t, first, clock.Now())
}

func TestDeterministicClock_IndependentInstances(t *testing.T) {
	a, b := NewDeterministicClock(), NewDeterministicClock()
	for range 16 {
		require.Equal(t, a.Now(), b.Now())
	}
}

func TestDeterministicClock_ConcurrentCallers(t *testing.T) {
	const workers, calls = 32, 50
	clock := NewDeterministicClock()

	stamps := make(chan time.Time, workers*calls)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				stamps <- clock.Now()
			}
		}()
	}
	wg.Wait()
	close(stamps)

	seen := make(map[time.Time]struct{}, workers*calls)
	for ts := range stamps {
		_, dup := seen[ts]
		require.False(t, dup, "timestamp %s handed out twice", ts)
		seen[ts] = struct{}{}
	}
	assert.Len(t, seen, workers*calls)
	assert.Equal(t, int64(workers*calls), clock.Ticks())
	_, last := seen[Epoch.Add(workers*calls*time.Second)]
	assert.True(t, last)
}
