package index

import (
	"corebase"
	"corebase/buffer"
	"corebase/common"
	"corebase/storage/page"
)

// Iterator is a forward cursor over a tree's leaves in key order (C7,
// spec.md §4.7). It holds a single read guard at a time — on the leaf
// its current position lives in — so a long-lived scan never blocks a
// concurrent writer from crabbing past pages the scan has already moved
// beyond, only the one leaf it currently sits on.
type Iterator[K any] struct {
	pool  *buffer.Pool
	codec page.Codec[K]
	guard *buffer.ReadGuard
	pos   int
	end   bool
}

// Begin returns a cursor positioned at the first entry of the leftmost
// leaf, or an end cursor if the tree is empty.
func (t *BTree[K]) Begin() *Iterator[K] {
	headerGuard := t.pool.ReadPage(t.headerPageID)
	root := readRootPageID(headerGuard.Data())
	headerGuard.Drop()
	if root == corebase.InvalidPageID {
		return &Iterator[K]{pool: t.pool, codec: t.codec, end: true}
	}

	cur := t.pool.ReadPage(root)
	for page.TypeOf(cur.Data()) == page.Internal {
		internal := page.AsInternal(cur.Data(), t.codec)
		childID := internal.ValueAt(0)
		child := t.pool.ReadPage(childID)
		cur.Drop()
		cur = child
	}
	return &Iterator[K]{pool: t.pool, codec: t.codec, guard: cur, pos: 0}
}

// BeginAt descends using the internal-node routing function to the leaf
// that would hold key, and returns a cursor positioned there if key is
// present, or an end cursor if it is absent (spec.md §4.7).
func (t *BTree[K]) BeginAt(key K) *Iterator[K] {
	headerGuard := t.pool.ReadPage(t.headerPageID)
	root := readRootPageID(headerGuard.Data())
	headerGuard.Drop()
	if root == corebase.InvalidPageID {
		return &Iterator[K]{pool: t.pool, codec: t.codec, end: true}
	}

	cur := t.pool.ReadPage(root)
	for page.TypeOf(cur.Data()) == page.Internal {
		internal := page.AsInternal(cur.Data(), t.codec)
		childID := internal.Lookup(key, t.cmp)
		child := t.pool.ReadPage(childID)
		cur.Drop()
		cur = child
	}

	leaf := page.AsLeaf(cur.Data(), t.codec)
	idx := leaf.SearchKeyIndex(key, t.cmp)
	if idx >= leaf.Size() || t.cmp(leaf.KeyAt(idx), key) != 0 {
		cur.Drop()
		return &Iterator[K]{pool: t.pool, codec: t.codec, end: true}
	}
	return &Iterator[K]{pool: t.pool, codec: t.codec, guard: cur, pos: idx}
}

// End returns a sentinel end cursor. Every end cursor compares equal to
// every other end cursor; no non-end cursor ever does (spec.md §4.7).
func (t *BTree[K]) End() *Iterator[K] {
	return &Iterator[K]{pool: t.pool, codec: t.codec, end: true}
}

// IsEnd reports whether the cursor has run off the end of the tree.
func (it *Iterator[K]) IsEnd() bool { return it.end }

// Equal reports whether it and other refer to the same position, under
// the end-cursor equivalence described on End.
func (it *Iterator[K]) Equal(other *Iterator[K]) bool {
	if it.end || other.end {
		return it.end == other.end
	}
	return it.guard.PageID() == other.guard.PageID() && it.pos == other.pos
}

// Key returns the key at the cursor's current position.
func (it *Iterator[K]) Key() K {
	common.Assert(!it.end, "Iterator.Key: cursor is at end")
	leaf := page.AsLeaf(it.guard.Data(), it.codec)
	return leaf.KeyAt(it.pos)
}

// Value returns the row identifier at the cursor's current position.
func (it *Iterator[K]) Value() corebase.RID {
	common.Assert(!it.end, "Iterator.Value: cursor is at end")
	leaf := page.AsLeaf(it.guard.Data(), it.codec)
	return leaf.ValueAt(it.pos)
}

// Next advances the cursor by one entry, following a leaf's
// next-page-id sibling pointer once its own entries are exhausted, and
// becoming an end cursor once the last leaf is exhausted.
func (it *Iterator[K]) Next() {
	common.Assert(!it.end, "Iterator.Next: cursor is at end")
	leaf := page.AsLeaf(it.guard.Data(), it.codec)
	it.pos++
	if it.pos < leaf.Size() {
		return
	}

	nextID := leaf.NextPageID()
	it.guard.Drop()
	if nextID == corebase.InvalidPageID {
		it.end = true
		it.guard = nil
		it.pos = 0
		return
	}
	it.guard = it.pool.ReadPage(nextID)
	it.pos = 0
}

// Close releases the cursor's held guard, if any, without waiting for
// it to run to end. Safe to call on an already-end cursor.
func (it *Iterator[K]) Close() {
	if it.guard != nil {
		it.guard.Drop()
		it.guard = nil
	}
	it.end = true
}
