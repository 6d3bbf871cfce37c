package buffer

import (
	"math/rand"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corebase"
	"corebase/disk"
)

func newTestPool(t *testing.T, capacity, k int) (*Pool, func()) {
	t.Helper()
	name := uuid.NewString() + ".corebase"
	dm, err := disk.NewManager(name)
	require.NoError(t, err)

	cfg := corebase.Config{
		BufferPoolCapacity: capacity,
		LRUKParameter:      k,
		LeafMaxSize:        2,
		InternalMaxSize:    3,
		DiskIOWorkers:      2,
	}
	pool := NewPool(cfg, dm)
	return pool, func() {
		pool.Close()
		dm.Close()
		os.Remove(name)
	}
}

func TestPool_Should_Not_Corrupt_Pages(t *testing.T) {
	pool, cleanup := newTestPool(t, 4, 2)
	defer cleanup()

	const numPages = 20
	pageIDs := make([]corebase.PageID, numPages)
	randomPages := make([][]byte, numPages)
	for i := 0; i < numPages; i++ {
		randomPages[i] = make([]byte, corebase.PageSize)
		rand.Read(randomPages[i])

		id, guard := pool.NewPageGuarded()
		pageIDs[i] = id
		copy(guard.DataMut(), randomPages[i])
		guard.Drop()
	}

	for i := 0; i < numPages; i++ {
		guard := pool.ReadPage(pageIDs[i])
		assert.Equal(t, randomPages[i], guard.Data())
		guard.Drop()
	}
}

func TestPool_Unpinned_Dirty_Page_Survives_Eviction(t *testing.T) {
	pool, cleanup := newTestPool(t, 2, 2)
	defer cleanup()

	id, guard := pool.NewPageGuarded()
	guard.DataMut()[0] = 0x42
	guard.Drop()

	// fill the remaining frame and force an eviction of id's frame.
	_, g2 := pool.NewPageGuarded()
	g2.Drop()
	_, g3 := pool.NewPageGuarded()
	g3.Drop()

	guard2 := pool.ReadPage(id)
	assert.Equal(t, byte(0x42), guard2.Data()[0])
	guard2.Drop()
}

func TestPool_CheckedReadPage_Fails_When_Exhausted(t *testing.T) {
	pool, cleanup := newTestPool(t, 2, 2)
	defer cleanup()

	id1, g1 := pool.NewPageGuarded()
	_ = id1
	id2, g2 := pool.NewPageGuarded()
	_ = id2
	// both frames pinned and not evictable: a third page cannot be fetched.
	_, ok := pool.CheckedReadPage(pool.NewPage())
	assert.False(t, ok)

	g1.Drop()
	g2.Drop()
}

func TestPool_DeletePage_Fails_While_Pinned(t *testing.T) {
	pool, cleanup := newTestPool(t, 2, 2)
	defer cleanup()

	id, guard := pool.NewPageGuarded()
	assert.False(t, pool.DeletePage(id))
	guard.Drop()
	assert.True(t, pool.DeletePage(id))
}

func TestPool_GetPinCount(t *testing.T) {
	pool, cleanup := newTestPool(t, 2, 2)
	defer cleanup()

	id, guard := pool.NewPageGuarded()
	pc, ok := pool.GetPinCount(id)
	assert.True(t, ok)
	assert.EqualValues(t, 1, pc)
	guard.Drop()

	pc, ok = pool.GetPinCount(id)
	assert.True(t, ok)
	assert.Zero(t, pc)
}

func TestPool_Stats_Tracks_Hits_And_Misses(t *testing.T) {
	pool, cleanup := newTestPool(t, 2, 2)
	defer cleanup()

	id, g := pool.NewPageGuarded()
	g.Drop()

	g2 := pool.ReadPage(id)
	g2.Drop()

	stats := pool.Stats()
	assert.GreaterOrEqual(t, stats["hit"], int64(1))
}
