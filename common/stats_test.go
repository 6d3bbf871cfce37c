package common

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStats_IncrAndGet(t *testing.T) {
	s := NewStats()
	assert.Zero(t, s.Get("hit"))
	s.Incr("hit", 1)
	s.Incr("hit", 2)
	assert.EqualValues(t, 3, s.Get("hit"))
}

func TestStats_Snapshot_IsIndependentCopy(t *testing.T) {
	s := NewStats()
	s.Incr("miss", 5)
	snap := s.Snapshot()
	assert.EqualValues(t, 5, snap["miss"])

	s.Incr("miss", 1)
	assert.EqualValues(t, 5, snap["miss"], "earlier snapshot must not see later updates")
	assert.EqualValues(t, 6, s.Get("miss"))
}

func TestStats_ConcurrentIncr(t *testing.T) {
	s := NewStats()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Incr("eviction", 1)
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 100, s.Get("eviction"))
}
