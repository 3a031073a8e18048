package scanengine

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGuard_RejectsOverlap(t *testing.T) {
	var g guard
	assert.True(t, g.tryAcquire())
	assert.False(t, g.tryAcquire(), "a second acquire while held must be rejected, not queued")
	assert.True(t, g.held())

	g.release()
	assert.False(t, g.held())
	assert.True(t, g.tryAcquire(), "acquire must succeed again after release")
}

func TestGuard_ConcurrentAcquireOnlyOneWinner(t *testing.T) {
	var g guard
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if g.tryAcquire() {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}
