package page

import (
	"corebase"
	"corebase/common"
)

// Leaf page layout, following the common header:
//
//	offset 9:  next_page_id (int64, 8 bytes)
//	offset 17: keys[0..max_size), values[0..max_size) interleaved as
//	           (key, value) pairs, each entrySize(key) bytes wide.
const leafHeaderSize = commonHeaderSize + 8

const ridSize = 12 // corebase.RID: PageID (int64) + SlotNum (uint32)

// LeafPage is a typed view over a leaf page's bytes (C5, spec.md §4.5).
type LeafPage[K any] struct {
	data  []byte
	codec Codec[K]
}

// AsLeaf wraps data as a leaf page. data must be a page guard's full
// PageSize buffer.
func AsLeaf[K any](data []byte, codec Codec[K]) *LeafPage[K] {
	return &LeafPage[K]{data: data, codec: codec}
}

func (l *LeafPage[K]) entrySize() int { return l.codec.Size() + ridSize }

// Init formats data as a fresh, empty leaf page with room for maxSize
// entries.
func (l *LeafPage[K]) Init(maxSize int) {
	writeType(l.data, Leaf)
	writeSize(l.data, 0)
	writeMaxSize(l.data, maxSize)
	writePageID(l.data, commonHeaderSize, corebase.InvalidPageID)
}

func (l *LeafPage[K]) IsLeaf() bool { return TypeOf(l.data) == Leaf }

func (l *LeafPage[K]) Size() int        { return readSize(l.data) }
func (l *LeafPage[K]) SetSize(n int)    { writeSize(l.data, n) }
func (l *LeafPage[K]) MaxSize() int     { return readMaxSize(l.data) }
func (l *LeafPage[K]) IsFull() bool     { return l.Size() >= l.MaxSize() }

func (l *LeafPage[K]) NextPageID() corebase.PageID {
	return readPageID(l.data, commonHeaderSize)
}

func (l *LeafPage[K]) SetNextPageID(id corebase.PageID) {
	writePageID(l.data, commonHeaderSize, id)
}

func (l *LeafPage[K]) keyOffset(i int) int {
	return leafHeaderSize + i*l.entrySize()
}

func (l *LeafPage[K]) KeyAt(i int) K {
	off := l.keyOffset(i)
	return l.codec.Decode(l.data[off : off+l.codec.Size()])
}

func (l *LeafPage[K]) SetKeyAt(i int, key K) {
	off := l.keyOffset(i)
	l.codec.Encode(l.data[off:off+l.codec.Size()], key)
}

func (l *LeafPage[K]) ValueAt(i int) corebase.RID {
	off := l.keyOffset(i) + l.codec.Size()
	return corebase.RID{
		PageID:  readPageID(l.data, off),
		SlotNum: readUint32(l.data, off+8),
	}
}

// SetValueAt writes val into entry i's value slot.
func (l *LeafPage[K]) SetValueAt(i int, val corebase.RID) {
	off := l.keyOffset(i) + l.codec.Size()
	writePageID(l.data, off, val.PageID)
	writeUint32(l.data, off+8, val.SlotNum)
}

// SearchKeyIndex returns the smallest index i such that KeyAt(i) >= key
// (sort.Search-style lower bound), in [0, Size()].
func (l *LeafPage[K]) SearchKeyIndex(key K, cmp Comparator[K]) int {
	size := l.Size()
	lo, hi := 0, size
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(l.KeyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (l *LeafPage[K]) findExact(key K, cmp Comparator[K]) (int, bool) {
	idx := l.SearchKeyIndex(key, cmp)
	if idx < l.Size() && cmp(l.KeyAt(idx), key) == 0 {
		return idx, true
	}
	return idx, false
}

// Lookup returns the value associated with key, if present.
func (l *LeafPage[K]) Lookup(key K, cmp Comparator[K]) (corebase.RID, bool) {
	idx, ok := l.findExact(key, cmp)
	if !ok {
		return corebase.RID{}, false
	}
	return l.ValueAt(idx), true
}

// InsertKeyValue inserts key/val in sorted order. It returns false
// without mutating the page if key is already present or the page is
// full.
func (l *LeafPage[K]) InsertKeyValue(key K, val corebase.RID, cmp Comparator[K]) bool {
	if l.IsFull() {
		return false
	}
	idx, exists := l.findExact(key, cmp)
	if exists {
		return false
	}
	size := l.Size()
	for i := size; i > idx; i-- {
		l.SetKeyAt(i, l.KeyAt(i-1))
		l.SetValueAt(i, l.ValueAt(i-1))
	}
	l.SetKeyAt(idx, key)
	l.SetValueAt(idx, val)
	l.SetSize(size + 1)
	return true
}

// SplitLeaf distributes this page's existing maxSize entries plus the
// new (key, val) pair between this page and an empty sibling: this page
// keeps ceil((maxSize+1)/2) entries, the sibling gets the rest, and the
// sibling is spliced into the leaf chain via siblingPageID (spec.md
// §4.5). Precondition: this page is full and sibling is empty.
func (l *LeafPage[K]) SplitLeaf(sibling *LeafPage[K], siblingPageID corebase.PageID, key K, val corebase.RID, cmp Comparator[K]) {
	maxSize := l.MaxSize()
	common.Assert(l.Size() == maxSize, "SplitLeaf: this page is not full")
	common.Assert(sibling.Size() == 0, "SplitLeaf: sibling page is not empty")

	type kv struct {
		key K
		val corebase.RID
	}
	combined := make([]kv, 0, maxSize+1)
	inserted := false
	for i := 0; i < maxSize; i++ {
		k := l.KeyAt(i)
		if !inserted && cmp(key, k) < 0 {
			combined = append(combined, kv{key, val})
			inserted = true
		}
		combined = append(combined, kv{k, l.ValueAt(i)})
	}
	if !inserted {
		combined = append(combined, kv{key, val})
	}

	leftCount := (maxSize + 2) / 2 // ceil((maxSize+1)/2)
	rightCount := len(combined) - leftCount

	l.SetSize(leftCount)
	for i := 0; i < leftCount; i++ {
		l.SetKeyAt(i, combined[i].key)
		l.SetValueAt(i, combined[i].val)
	}
	sibling.SetSize(rightCount)
	for i := 0; i < rightCount; i++ {
		sibling.SetKeyAt(i, combined[leftCount+i].key)
		sibling.SetValueAt(i, combined[leftCount+i].val)
	}
	sibling.SetNextPageID(l.NextPageID())
	l.SetNextPageID(siblingPageID)
}

// DeleteKey removes key if present. If removing it would take this
// page's size below MinSize(MaxSize()) and this page is not the tree's
// root, the page is left unmodified and DeleteKey returns false so the
// caller can rebalance via borrow or merge instead. A key that was
// never present is vacuously removed (returns true).
func (l *LeafPage[K]) DeleteKey(key K, isRoot bool, cmp Comparator[K]) bool {
	idx, ok := l.findExact(key, cmp)
	if !ok {
		return true
	}
	newSize := l.Size() - 1
	if !isRoot && newSize < MinSize(l.MaxSize()) {
		return false
	}
	for i := idx; i < newSize; i++ {
		l.SetKeyAt(i, l.KeyAt(i+1))
		l.SetValueAt(i, l.ValueAt(i+1))
	}
	l.SetSize(newSize)
	return true
}

// BorrowFromRight moves sibling's first entry onto the end of this page.
func (l *LeafPage[K]) BorrowFromRight(sibling *LeafPage[K]) {
	size := l.Size()
	l.SetKeyAt(size, sibling.KeyAt(0))
	l.SetValueAt(size, sibling.ValueAt(0))
	l.SetSize(size + 1)

	rsize := sibling.Size()
	for i := 0; i < rsize-1; i++ {
		sibling.SetKeyAt(i, sibling.KeyAt(i+1))
		sibling.SetValueAt(i, sibling.ValueAt(i+1))
	}
	sibling.SetSize(rsize - 1)
}

// BorrowFromLeft moves sibling's last entry onto the front of this page.
func (l *LeafPage[K]) BorrowFromLeft(sibling *LeafPage[K]) {
	size := l.Size()
	for i := size; i > 0; i-- {
		l.SetKeyAt(i, l.KeyAt(i-1))
		l.SetValueAt(i, l.ValueAt(i-1))
	}
	lastIdx := sibling.Size() - 1
	l.SetKeyAt(0, sibling.KeyAt(lastIdx))
	l.SetValueAt(0, sibling.ValueAt(lastIdx))
	l.SetSize(size + 1)
	sibling.SetSize(lastIdx)
}

// CombinePage appends right's entries onto this page and inherits its
// next-page pointer. Precondition: the combined size fits within
// MaxSize().
func (l *LeafPage[K]) CombinePage(right *LeafPage[K]) {
	common.Assert(l.Size()+right.Size() <= l.MaxSize(), "CombinePage: combined size exceeds max_size")
	base := l.Size()
	for i := 0; i < right.Size(); i++ {
		l.SetKeyAt(base+i, right.KeyAt(i))
		l.SetValueAt(base+i, right.ValueAt(i))
	}
	l.SetSize(base + right.Size())
	l.SetNextPageID(right.NextPageID())
}
