// Package index implements the disk-resident, concurrent B+ tree index
// (C6, spec.md §4.6) and its range-scan iterator (C7, spec.md §4.7),
// built on top of the buffer pool (C3) and B+ tree page primitives (C5).
package index

import (
	"encoding/binary"

	"corebase"
	"corebase/buffer"
	"corebase/common"
	"corebase/storage/page"
)

// BTree is a disk-resident B+ tree index over keys of type K, values
// being row identifiers. A dedicated header page (spec.md §3) stores
// the current root page id, or corebase.InvalidPageID when the tree is
// empty.
type BTree[K any] struct {
	pool         *buffer.Pool
	headerPageID corebase.PageID
	codec        page.Codec[K]
	cmp          page.Comparator[K]

	leafMaxSize     int
	internalMaxSize int
}

// NewBTree allocates a fresh header page in pool and returns an empty
// tree over it. leafMaxSize and internalMaxSize bound the number of
// entries a leaf or internal page may hold; leafMaxSize must be at least
// 2 and internalMaxSize at least 3.
func NewBTree[K any](pool *buffer.Pool, codec page.Codec[K], cmp page.Comparator[K], leafMaxSize, internalMaxSize int) *BTree[K] {
	common.Assert(leafMaxSize >= 2, "leaf_max_size must be >= 2")
	common.Assert(internalMaxSize >= 3, "internal_max_size must be >= 3")

	headerPageID, guard := pool.NewPageGuarded()
	writeRootPageID(guard.DataMut(), corebase.InvalidPageID)
	guard.Drop()

	return &BTree[K]{
		pool:            pool,
		headerPageID:    headerPageID,
		codec:           codec,
		cmp:             cmp,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
	}
}

func readRootPageID(data []byte) corebase.PageID {
	return corebase.PageID(int64(binary.NativeEndian.Uint64(data[0:8])))
}

func writeRootPageID(data []byte, id corebase.PageID) {
	binary.NativeEndian.PutUint64(data[0:8], uint64(int64(id)))
}

// IsEmpty reports whether the tree currently has no root.
func (t *BTree[K]) IsEmpty() bool {
	g := t.pool.ReadPage(t.headerPageID)
	defer g.Drop()
	return readRootPageID(g.Data()) == corebase.InvalidPageID
}

// GetRootPageId returns the tree's current root page id, or
// corebase.InvalidPageID if the tree is empty.
func (t *BTree[K]) GetRootPageId() corebase.PageID {
	g := t.pool.ReadPage(t.headerPageID)
	defer g.Drop()
	return readRootPageID(g.Data())
}

// GetValue returns the row identifiers stored under key, descending
// read-guard by read-guard and releasing each parent as soon as its
// child is held, since reads never restructure the tree (spec.md
// §4.6). Because this tree assumes unique keys, the result holds at
// most one value.
func (t *BTree[K]) GetValue(key K) ([]corebase.RID, bool) {
	headerGuard := t.pool.ReadPage(t.headerPageID)
	root := readRootPageID(headerGuard.Data())
	if root == corebase.InvalidPageID {
		headerGuard.Drop()
		return nil, false
	}

	cur := t.pool.ReadPage(root)
	headerGuard.Drop()

	for {
		data := cur.Data()
		if page.TypeOf(data) == page.Leaf {
			leaf := page.AsLeaf(data, t.codec)
			val, ok := leaf.Lookup(key, t.cmp)
			cur.Drop()
			if !ok {
				return nil, false
			}
			return []corebase.RID{val}, true
		}
		internal := page.AsInternal(data, t.codec)
		childID := internal.Lookup(key, t.cmp)
		child := t.pool.ReadPage(childID)
		cur.Drop()
		cur = child
	}
}

// Insert adds key/value to the tree. It returns false without mutating
// anything if key is already present (spec.md §7: duplicate insert
// returns false). Descent uses pessimistic write crabbing: a child's
// write guard is acquired before its parent's is considered for
// release, and the parent (and all its own retained ancestors) is
// released only once the child is proven insert-safe (not full).
func (t *BTree[K]) Insert(key K, value corebase.RID) bool {
	ctx := newContext()
	ctx.headerGuard = t.pool.WritePage(t.headerPageID)
	root := readRootPageID(ctx.headerGuard.Data())

	if root == corebase.InvalidPageID {
		pid, guard := t.pool.NewPageGuarded()
		leaf := page.AsLeaf(guard.DataMut(), t.codec)
		leaf.Init(t.leafMaxSize)
		ok := leaf.InsertKeyValue(key, value, t.cmp)
		common.Assert(ok, "Insert: fresh leaf rejected its first insert")
		guard.Drop()
		writeRootPageID(ctx.headerGuard.DataMut(), pid)
		ctx.releaseAllWrite()
		return true
	}

	rootGuard := t.pool.WritePage(root)
	ctx.pushWrite(rootGuard)

	for page.TypeOf(ctx.topWrite().Data()) == page.Internal {
		top := ctx.topWrite()
		internal := page.AsInternal(top.Data(), t.codec)
		childID := internal.Lookup(key, t.cmp)
		childGuard := t.pool.WritePage(childID)
		ctx.pushWrite(childGuard)
		if !page.IsFull(childGuard.Data()) {
			ctx.releaseAncestors()
		}
	}

	leafGuard := ctx.popWrite()
	leaf := page.AsLeaf(leafGuard.Data(), t.codec)
	if _, exists := leaf.Lookup(key, t.cmp); exists {
		leafGuard.Drop()
		ctx.releaseAllWrite()
		return false
	}
	if leaf.InsertKeyValue(key, value, t.cmp) {
		leafGuard.Drop()
		ctx.releaseAllWrite()
		return true
	}

	// Leaf is full: split, then bubble the new separator upward.
	siblingID, siblingGuard := t.pool.NewPageGuarded()
	sibling := page.AsLeaf(siblingGuard.DataMut(), t.codec)
	sibling.Init(t.leafMaxSize)
	leaf.SplitLeaf(sibling, siblingID, key, value, t.cmp)
	promotedKey := sibling.KeyAt(0)
	promotedChild := siblingID
	siblingGuard.Drop()
	currentPageID := leafGuard.PageID()
	leafGuard.Drop()

	for {
		parentGuard := ctx.popWrite()
		if parentGuard == nil {
			// The split bubbled past the root: grow the tree by one level.
			newRootID, newRootGuard := t.pool.NewPageGuarded()
			newRoot := page.AsInternal(newRootGuard.DataMut(), t.codec)
			newRoot.Init(t.internalMaxSize)
			newRoot.SetSize(2)
			newRoot.SetValueAt(0, currentPageID)
			newRoot.SetKeyAt(1, promotedKey)
			newRoot.SetValueAt(1, promotedChild)
			newRootGuard.Drop()
			writeRootPageID(ctx.headerGuard.DataMut(), newRootID)
			ctx.releaseAllWrite()
			return true
		}

		parent := page.AsInternal(parentGuard.Data(), t.codec)
		if parent.Insert(promotedKey, promotedChild, t.cmp) {
			parentGuard.Drop()
			ctx.releaseAllWrite()
			return true
		}

		siblingID, siblingGuard := t.pool.NewPageGuarded()
		siblingInternal := page.AsInternal(siblingGuard.DataMut(), t.codec)
		siblingInternal.Init(t.internalMaxSize)
		newPromoted := parent.SplitInternal(siblingInternal, promotedKey, promotedChild, t.cmp)
		siblingGuard.Drop()
		currentPageID = parentGuard.PageID()
		parentGuard.Drop()
		promotedKey = newPromoted
		promotedChild = siblingID
	}
}

// Remove deletes key from the tree, if present. Descent uses
// delete-crabbing: a parent (and its own retained ancestors) is
// released once its child is proven delete-safe (size strictly above
// the minimum). At the leaf, a direct delete that keeps the leaf at or
// above minimum (or the leaf is the root) finishes the operation;
// otherwise the leaf borrows from or merges with a sibling, propagating
// the resulting underflow (and any separator-key deletion) up through
// internal nodes, possibly collapsing the root (spec.md §4.6).
func (t *BTree[K]) Remove(key K) {
	ctx := newContext()
	ctx.headerGuard = t.pool.WritePage(t.headerPageID)
	root := readRootPageID(ctx.headerGuard.Data())
	if root == corebase.InvalidPageID {
		ctx.headerGuard.Drop()
		return
	}

	rootGuard := t.pool.WritePage(root)
	rootIsLeaf := page.TypeOf(rootGuard.Data()) == page.Leaf
	ctx.pushWrite(rootGuard)

	for page.TypeOf(ctx.topWrite().Data()) == page.Internal {
		top := ctx.topWrite()
		internal := page.AsInternal(top.Data(), t.codec)
		childID := internal.Lookup(key, t.cmp)
		childGuard := t.pool.WritePage(childID)
		childData := childGuard.Data()
		safe := page.SizeOf(childData) > page.MinSize(page.MaxSizeOf(childData))
		ctx.pushWrite(childGuard)
		if safe {
			ctx.releaseAncestors()
		}
	}

	leafGuard := ctx.popWrite()
	leaf := page.AsLeaf(leafGuard.Data(), t.codec)
	isRoot := rootIsLeaf

	if leaf.DeleteKey(key, isRoot, t.cmp) {
		if isRoot && leaf.Size() == 0 {
			writeRootPageID(ctx.headerGuard.DataMut(), corebase.InvalidPageID)
			pid := leafGuard.PageID()
			leafGuard.Drop()
			ctx.releaseAllWrite()
			t.pool.DeletePage(pid)
			return
		}
		leafGuard.Drop()
		ctx.releaseAllWrite()
		return
	}

	// The floor check above refused to mutate the page (spec.md §4.5:
	// DeleteKey leaves a leaf that would underflow untouched). Force the
	// deletion through now, since the borrow/merge below is about to
	// restore the floor anyway — the key must actually be gone from leaf
	// before it is combined into or balanced against a sibling.
	common.Assert(leaf.DeleteKey(key, true, t.cmp), "Remove: key vanished between the underflow check and the forced delete")

	// Leaf underflowed: borrow from, or merge with, a sibling,
	// preferring the right sibling and falling back to the left.
	parentGuard := ctx.popWrite()
	common.Assert(parentGuard != nil, "Remove: leaf underflowed with no parent in context")
	parent := page.AsInternal(parentGuard.Data(), t.codec)
	leafPageID := leafGuard.PageID()
	idx := parent.IndexOf(leafPageID)
	common.Assert(idx >= 0, "Remove: leaf page not found among parent's children")

	if idx+1 < parent.Size() {
		rightID := parent.ValueAt(idx + 1)
		rightGuard := t.pool.WritePage(rightID)
		right := page.AsLeaf(rightGuard.Data(), t.codec)
		if right.Size() > page.MinSize(right.MaxSize()) {
			leaf.BorrowFromRight(right)
			parent.SetKeyAt(idx+1, right.KeyAt(0))
			rightGuard.Drop()
			leafGuard.Drop()
			parentGuard.Drop()
			ctx.releaseAllWrite()
			return
		}
		leaf.CombinePage(right)
		rightGuard.Drop()
		t.pool.DeletePage(rightID)
		leafGuard.Drop()
		parent.RemoveChildAt(idx + 1)
	} else {
		leftID := parent.ValueAt(idx - 1)
		leftGuard := t.pool.WritePage(leftID)
		left := page.AsLeaf(leftGuard.Data(), t.codec)
		if left.Size() > page.MinSize(left.MaxSize()) {
			leaf.BorrowFromLeft(left)
			parent.SetKeyAt(idx, leaf.KeyAt(0))
			leftGuard.Drop()
			leafGuard.Drop()
			parentGuard.Drop()
			ctx.releaseAllWrite()
			return
		}
		left.CombinePage(leaf)
		leafGuard.Drop()
		t.pool.DeletePage(leafPageID)
		leftGuard.Drop()
		parent.RemoveChildAt(idx)
	}

	// The separator key covering the merged-away page is gone from
	// parent; propagate the resulting underflow upward.
	for {
		if parentGuard.PageID() == root {
			if parent.Size() == 1 {
				onlyChild := parent.ValueAt(0)
				oldRootID := parentGuard.PageID()
				parentGuard.Drop()
				writeRootPageID(ctx.headerGuard.DataMut(), onlyChild)
				ctx.releaseAllWrite()
				t.pool.DeletePage(oldRootID)
				return
			}
			parentGuard.Drop()
			ctx.releaseAllWrite()
			return
		}

		if parent.Size() >= page.MinSize(parent.MaxSize()) {
			parentGuard.Drop()
			ctx.releaseAllWrite()
			return
		}

		grandGuard := ctx.popWrite()
		common.Assert(grandGuard != nil, "Remove: internal node underflowed with no parent in context")
		grand := page.AsInternal(grandGuard.Data(), t.codec)
		parentPID := parentGuard.PageID()
		gidx := grand.IndexOf(parentPID)
		common.Assert(gidx >= 0, "Remove: internal page not found among parent's children")

		if gidx+1 < grand.Size() {
			rightID := grand.ValueAt(gidx + 1)
			rightGuard := t.pool.WritePage(rightID)
			rightInternal := page.AsInternal(rightGuard.Data(), t.codec)
			if rightInternal.Size() > page.MinSize(rightInternal.MaxSize()) {
				newSep := parent.BorrowFromRight(rightInternal, grand.KeyAt(gidx+1))
				grand.SetKeyAt(gidx+1, newSep)
				rightGuard.Drop()
				parentGuard.Drop()
				grandGuard.Drop()
				ctx.releaseAllWrite()
				return
			}
			parent.CombinePage(rightInternal, grand.KeyAt(gidx+1))
			rightGuard.Drop()
			t.pool.DeletePage(rightID)
			grand.RemoveChildAt(gidx + 1)
			parentGuard.Drop()
		} else {
			leftID := grand.ValueAt(gidx - 1)
			leftGuard := t.pool.WritePage(leftID)
			leftInternal := page.AsInternal(leftGuard.Data(), t.codec)
			if leftInternal.Size() > page.MinSize(leftInternal.MaxSize()) {
				newSep := parent.BorrowFromLeft(leftInternal, grand.KeyAt(gidx))
				grand.SetKeyAt(gidx, newSep)
				leftGuard.Drop()
				parentGuard.Drop()
				grandGuard.Drop()
				ctx.releaseAllWrite()
				return
			}
			leftInternal.CombinePage(parent, grand.KeyAt(gidx))
			leftGuard.Drop()
			parentGuard.Drop()
			t.pool.DeletePage(parentPID)
			grand.RemoveChildAt(gidx)
		}

		parentGuard = grandGuard
		parent = grand
	}
}
