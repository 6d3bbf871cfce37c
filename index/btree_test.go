package index

import (
	"math/rand"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corebase"
	"corebase/buffer"
	"corebase/disk"
	"corebase/storage/page"
)

func newTestTree(t *testing.T, leafMaxSize, internalMaxSize, poolCapacity int) (*BTree[int64], func()) {
	t.Helper()
	name := uuid.NewString() + ".corebase"
	dm, err := disk.NewManager(name)
	require.NoError(t, err)

	cfg := corebase.Config{
		BufferPoolCapacity: poolCapacity,
		LRUKParameter:      2,
		LeafMaxSize:        leafMaxSize,
		InternalMaxSize:    internalMaxSize,
		DiskIOWorkers:      2,
	}
	pool := buffer.NewPool(cfg, dm)
	tree := NewBTree[int64](pool, page.Int64Codec{}, page.CompareInt64, leafMaxSize, internalMaxSize)
	return tree, func() {
		pool.Close()
		dm.Close()
		os.Remove(name)
	}
}

func rid(k int64) corebase.RID { return corebase.RID{PageID: corebase.PageID(k), SlotNum: 0} }

// spec.md §8 boundary scenario 1: basic insert.
func TestBTree_BoundaryScenario1_BasicInsert(t *testing.T) {
	tree, cleanup := newTestTree(t, 2, 3, 50)
	defer cleanup()

	assert.True(t, tree.IsEmpty())
	assert.True(t, tree.Insert(42, rid(42)))
	assert.False(t, tree.IsEmpty())

	values, ok := tree.GetValue(42)
	require.True(t, ok)
	assert.Equal(t, []corebase.RID{rid(42)}, values)
}

// spec.md §8 boundary scenario 2: sequential splits.
func TestBTree_BoundaryScenario2_SequentialSplits(t *testing.T) {
	tree, cleanup := newTestTree(t, 2, 3, 50)
	defer cleanup()

	for _, k := range []int64{1, 2, 3, 4, 5} {
		assert.True(t, tree.Insert(k, rid(k)))
	}
	for _, k := range []int64{1, 2, 3, 4, 5} {
		values, ok := tree.GetValue(k)
		require.True(t, ok)
		assert.Equal(t, []corebase.RID{rid(k)}, values)
	}

	var seen []int64
	for it := tree.Begin(); !it.IsEnd(); it.Next() {
		seen = append(seen, it.Key())
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, seen)
}

// spec.md §8 boundary scenario 3: descending inserts reach the same
// observable state as ascending ones.
func TestBTree_BoundaryScenario3_DescendingInserts(t *testing.T) {
	tree, cleanup := newTestTree(t, 2, 3, 50)
	defer cleanup()

	for _, k := range []int64{5, 4, 3, 2, 1} {
		assert.True(t, tree.Insert(k, rid(k)))
	}

	var seen []int64
	for it := tree.Begin(); !it.IsEnd(); it.Next() {
		seen = append(seen, it.Key())
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, seen)
}

// spec.md §8 boundary scenario 4: mixed sign keys.
func TestBTree_BoundaryScenario4_MixedSignKeys(t *testing.T) {
	tree, cleanup := newTestTree(t, 2, 3, 50)
	defer cleanup()

	keys := []int64{10, 20, 30, -2, -10, -20, -30, -40}
	for _, k := range keys {
		assert.True(t, tree.Insert(k, rid(k)))
	}
	values, ok := tree.GetValue(-30)
	require.True(t, ok)
	assert.Equal(t, []corebase.RID{rid(-30)}, values)

	for _, k := range keys {
		_, ok := tree.GetValue(k)
		assert.True(t, ok, "key %d should be retrievable", k)
	}
}

func TestBTree_DuplicateInsert_ReturnsFalseWithoutChangingState(t *testing.T) {
	tree, cleanup := newTestTree(t, 2, 3, 50)
	defer cleanup()

	require.True(t, tree.Insert(1, rid(1)))
	assert.False(t, tree.Insert(1, rid(999)))

	values, ok := tree.GetValue(1)
	require.True(t, ok)
	assert.Equal(t, []corebase.RID{rid(1)}, values)
}

func TestBTree_InsertThenRemove_RestoresPriorKeySet(t *testing.T) {
	tree, cleanup := newTestTree(t, 3, 3, 50)
	defer cleanup()

	keys := []int64{1, 2, 3, 4, 5, 6, 7, 8}
	for _, k := range keys {
		require.True(t, tree.Insert(k, rid(k)))
	}
	tree.Remove(5)
	_, ok := tree.GetValue(5)
	assert.False(t, ok)
	for _, k := range []int64{1, 2, 3, 4, 6, 7, 8} {
		_, ok := tree.GetValue(k)
		assert.True(t, ok)
	}
}

func TestBTree_RemoveUntilEmpty(t *testing.T) {
	tree, cleanup := newTestTree(t, 3, 3, 50)
	defer cleanup()

	keys := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	for _, k := range keys {
		require.True(t, tree.Insert(k, rid(k)))
	}
	for _, k := range keys {
		tree.Remove(k)
	}
	assert.True(t, tree.IsEmpty())
	assert.EqualValues(t, corebase.InvalidPageID, tree.GetRootPageId())

	var seen []int64
	for it := tree.Begin(); !it.IsEnd(); it.Next() {
		seen = append(seen, it.Key())
	}
	assert.Empty(t, seen)
}

func TestBTree_RemoveAbsentKey_IsNoop(t *testing.T) {
	tree, cleanup := newTestTree(t, 2, 3, 50)
	defer cleanup()

	require.True(t, tree.Insert(1, rid(1)))
	tree.Remove(99)
	values, ok := tree.GetValue(1)
	require.True(t, ok)
	assert.Equal(t, []corebase.RID{rid(1)}, values)
}

// Any permutation of a key set inserted into an initially empty tree
// ends up with the same observable key set (round-trip law, spec.md §8).
func TestBTree_PermutationInvariance(t *testing.T) {
	n := 64
	base := make([]int64, n)
	for i := range base {
		base[i] = int64(i)
	}

	rng := rand.New(rand.NewSource(7))
	perm := make([]int64, n)
	copy(perm, base)
	rng.Shuffle(n, func(i, j int) { perm[i], perm[j] = perm[j], perm[i] })

	tree, cleanup := newTestTree(t, 3, 3, 50)
	defer cleanup()
	for _, k := range perm {
		require.True(t, tree.Insert(k, rid(k)))
	}

	var seen []int64
	for it := tree.Begin(); !it.IsEnd(); it.Next() {
		seen = append(seen, it.Key())
	}
	assert.Equal(t, base, seen)
}

// spec.md §8 boundary scenario 6: concurrent inserts of disjoint key
// ranges produce a tree holding exactly the union of ranges.
func TestBTree_ConcurrentInserts_DisjointRanges(t *testing.T) {
	tree, cleanup := newTestTree(t, 4, 4, 200)
	defer cleanup()

	const workers = 8
	const perWorker = 500
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(base int64) {
			defer wg.Done()
			for i := int64(0); i < perWorker; i++ {
				k := base + i
				tree.Insert(k, rid(k))
			}
		}(int64(w) * perWorker)
	}
	wg.Wait()

	for w := 0; w < workers; w++ {
		base := int64(w) * perWorker
		for i := int64(0); i < perWorker; i++ {
			_, ok := tree.GetValue(base + i)
			assert.True(t, ok)
		}
	}

	count := 0
	prev := int64(-1)
	for it := tree.Begin(); !it.IsEnd(); it.Next() {
		assert.Greater(t, it.Key(), prev)
		prev = it.Key()
		count++
	}
	assert.Equal(t, workers*perWorker, count)
}

// spec.md §8 boundary scenario 6: concurrent readers scanning while a
// writer inserts never observe a partially-split node.
func TestBTree_ConcurrentReadersDuringWrites(t *testing.T) {
	tree, cleanup := newTestTree(t, 4, 4, 200)
	defer cleanup()

	for i := int64(0); i < 200; i++ {
		require.True(t, tree.Insert(i, rid(i)))
	}

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(200); i < 1000; i++ {
			tree.Insert(i, rid(i))
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				seen := make(map[int64]bool)
				for it := tree.Begin(); !it.IsEnd(); it.Next() {
					k := it.Key()
					assert.False(t, seen[k], "key %d observed twice in one scan", k)
					seen[k] = true
				}
			}
		}()
	}
	wg.Wait()
}
