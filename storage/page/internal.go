package page

import (
	"corebase"
	"corebase/common"
)

// Internal page layout, following the common header:
//
//	offset 9: keys[0..max_size), children[0..max_size) interleaved as
//	          (key, child) pairs, each entrySize(key) bytes wide.
//
// keys[0] is an unused sentinel: children[i] holds every key k such
// that keys[i] <= k < keys[i+1] (keys[size] is implicitly +infinity),
// and children[0] holds every key less than keys[1].
const internalHeaderSize = commonHeaderSize

// InternalPage is a typed view over an internal page's bytes (C5,
// spec.md §4.5).
type InternalPage[K any] struct {
	data  []byte
	codec Codec[K]
}

// AsInternal wraps data as an internal page. data must be a page
// guard's full PageSize buffer.
func AsInternal[K any](data []byte, codec Codec[K]) *InternalPage[K] {
	return &InternalPage[K]{data: data, codec: codec}
}

func (n *InternalPage[K]) entrySize() int { return n.codec.Size() + 8 }

// Init formats data as a fresh, empty internal page with room for
// maxSize children.
func (n *InternalPage[K]) Init(maxSize int) {
	writeType(n.data, Internal)
	writeSize(n.data, 0)
	writeMaxSize(n.data, maxSize)
}

func (n *InternalPage[K]) IsLeaf() bool { return false }

func (n *InternalPage[K]) Size() int     { return readSize(n.data) }
func (n *InternalPage[K]) SetSize(c int) { writeSize(n.data, c) }
func (n *InternalPage[K]) MaxSize() int  { return readMaxSize(n.data) }
func (n *InternalPage[K]) IsFull() bool  { return n.Size() >= n.MaxSize() }

func (n *InternalPage[K]) keyOffset(i int) int {
	return internalHeaderSize + i*n.entrySize()
}

// KeyAt returns the separator key at index i. Index 0 is an unused
// sentinel; callers should not read it.
func (n *InternalPage[K]) KeyAt(i int) K {
	off := n.keyOffset(i)
	return n.codec.Decode(n.data[off : off+n.codec.Size()])
}

func (n *InternalPage[K]) SetKeyAt(i int, key K) {
	off := n.keyOffset(i)
	n.codec.Encode(n.data[off:off+n.codec.Size()], key)
}

func (n *InternalPage[K]) ValueAt(i int) corebase.PageID {
	off := n.keyOffset(i) + n.codec.Size()
	return readPageID(n.data, off)
}

func (n *InternalPage[K]) SetValueAt(i int, child corebase.PageID) {
	off := n.keyOffset(i) + n.codec.Size()
	writePageID(n.data, off, child)
}

// Lookup returns the child pointer to follow for key: the largest index
// i with KeyAt(i) <= key (or 0 if key is less than every real
// separator).
func (n *InternalPage[K]) Lookup(key K, cmp Comparator[K]) corebase.PageID {
	size := n.Size()
	if size <= 1 {
		return n.ValueAt(0)
	}
	lo, hi, res := 1, size-1, 0
	for lo <= hi {
		mid := (lo + hi) / 2
		if cmp(n.KeyAt(mid), key) <= 0 {
			res = mid
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return n.ValueAt(res)
}

// IndexOf returns the index of child among this page's children, or -1
// if it is not one of them.
func (n *InternalPage[K]) IndexOf(child corebase.PageID) int {
	for i := 0; i < n.Size(); i++ {
		if n.ValueAt(i) == child {
			return i
		}
	}
	return -1
}

// Insert adds a (key, child) pair in sorted position among the real
// separators (index >= 1). It returns false without mutating the page
// if the page is already full.
func (n *InternalPage[K]) Insert(key K, child corebase.PageID, cmp Comparator[K]) bool {
	if n.IsFull() {
		return false
	}
	size := n.Size()
	pos := 1
	for pos < size && cmp(n.KeyAt(pos), key) < 0 {
		pos++
	}
	for i := size; i > pos; i-- {
		n.SetKeyAt(i, n.KeyAt(i-1))
		n.SetValueAt(i, n.ValueAt(i-1))
	}
	n.SetKeyAt(pos, key)
	n.SetValueAt(pos, child)
	n.SetSize(size + 1)
	return true
}

// SplitInternal distributes this page's existing maxSize children plus
// a new (key, child) pair between this page and an empty sibling,
// promoting the median separator up to the caller rather than storing
// it in either page: this page keeps ceil((maxSize+1)/2) children, the
// sibling gets the rest. Precondition: this page is full and sibling is
// empty.
func (n *InternalPage[K]) SplitInternal(sibling *InternalPage[K], key K, child corebase.PageID, cmp Comparator[K]) K {
	size := n.Size()
	common.Assert(size == n.MaxSize(), "SplitInternal: this page is not full")
	common.Assert(sibling.Size() == 0, "SplitInternal: sibling page is not empty")

	allChildren := make([]corebase.PageID, 0, size+1)
	allSeps := make([]K, 0, size)
	allChildren = append(allChildren, n.ValueAt(0))
	inserted := false
	for i := 1; i < size; i++ {
		sep := n.KeyAt(i)
		c := n.ValueAt(i)
		if !inserted && cmp(key, sep) < 0 {
			allSeps = append(allSeps, key)
			allChildren = append(allChildren, child)
			inserted = true
		}
		allSeps = append(allSeps, sep)
		allChildren = append(allChildren, c)
	}
	if !inserted {
		allSeps = append(allSeps, key)
		allChildren = append(allChildren, child)
	}

	left := (size + 2) / 2 // ceil((size+1)/2) children kept on the left
	promoted := allSeps[left-1]

	n.SetSize(left)
	n.SetValueAt(0, allChildren[0])
	for i := 1; i < left; i++ {
		n.SetKeyAt(i, allSeps[i-1])
		n.SetValueAt(i, allChildren[i])
	}

	rightCount := (size + 1) - left
	sibling.SetSize(rightCount)
	sibling.SetValueAt(0, allChildren[left])
	for i := 1; i < rightCount; i++ {
		sibling.SetKeyAt(i, allSeps[left+i-1])
		sibling.SetValueAt(i, allChildren[left+i])
	}
	return promoted
}

// RemoveChildAt removes the (key, child) pair at idx (idx must be >= 1),
// shifting subsequent pairs down by one.
func (n *InternalPage[K]) RemoveChildAt(idx int) {
	common.Assert(idx >= 1 && idx < n.Size(), "RemoveChildAt: index %d out of range", idx)
	size := n.Size()
	for i := idx; i < size-1; i++ {
		n.SetKeyAt(i, n.KeyAt(i+1))
		n.SetValueAt(i, n.ValueAt(i+1))
	}
	n.SetSize(size - 1)
}

// BorrowFromRight moves one child from the front of sibling onto the
// end of this page, rotating through parentKey (the separator the
// parent currently holds between this page and sibling). It returns the
// new separator the parent must store in parentKey's place.
func (n *InternalPage[K]) BorrowFromRight(sibling *InternalPage[K], parentKey K) K {
	size := n.Size()
	n.SetKeyAt(size, parentKey)
	n.SetValueAt(size, sibling.ValueAt(0))
	n.SetSize(size + 1)

	newParentKey := sibling.KeyAt(1)
	rsize := sibling.Size()
	for i := 0; i < rsize-1; i++ {
		sibling.SetKeyAt(i, sibling.KeyAt(i+1))
		sibling.SetValueAt(i, sibling.ValueAt(i+1))
	}
	sibling.SetSize(rsize - 1)
	return newParentKey
}

// BorrowFromLeft moves one child from the end of sibling onto the front
// of this page, rotating through parentKey (the separator the parent
// currently holds between sibling and this page). It returns the new
// separator the parent must store in parentKey's place.
func (n *InternalPage[K]) BorrowFromLeft(sibling *InternalPage[K], parentKey K) K {
	size := n.Size()
	for i := size; i > 0; i-- {
		n.SetKeyAt(i, n.KeyAt(i-1))
		n.SetValueAt(i, n.ValueAt(i-1))
	}
	lastIdx := sibling.Size() - 1
	n.SetValueAt(0, sibling.ValueAt(lastIdx))
	n.SetKeyAt(1, parentKey)
	n.SetSize(size + 1)

	newParentKey := sibling.KeyAt(lastIdx)
	sibling.SetSize(lastIdx)
	return newParentKey
}

// CombinePage appends right's children onto this page, with parentKey
// (the separator the parent holds between this page and right) becoming
// the separator before right's first child. Precondition: the combined
// size fits within MaxSize().
func (n *InternalPage[K]) CombinePage(right *InternalPage[K], parentKey K) {
	base := n.Size()
	common.Assert(base+right.Size() <= n.MaxSize(), "CombinePage: combined size exceeds max_size")
	n.SetKeyAt(base, parentKey)
	n.SetValueAt(base, right.ValueAt(0))
	for i := 1; i < right.Size(); i++ {
		n.SetKeyAt(base+i, right.KeyAt(i))
		n.SetValueAt(base+i, right.ValueAt(i))
	}
	n.SetSize(base + right.Size())
}
