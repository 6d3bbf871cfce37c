// Package buffer implements the LRU-K replacement policy (C2), the
// buffer pool manager (C3), and the scoped page guards (C4) described in
// spec.md §4.2-§4.4.
package buffer

import (
	"sync"

	"corebase"
	"corebase/common"
)

type queueKind uint8

const (
	queueNone queueKind = iota
	queueHistory
	queueCache
)

// lruKNode is one frame's replacement bookkeeping. Nodes live in a slab
// indexed by frame id (spec.md §9's "arena-with-indices" redesign of the
// reference engine's intrusive pointer lists) and are threaded onto
// whichever of the two queues they currently belong to via prev/next
// indices; -1 means "no neighbor in that direction."
type lruKNode struct {
	exists    bool
	k         int
	ts        int64
	evictable bool
	queue     queueKind
	prev      int
	next      int
}

// dlist is an intrusive doubly linked list over a shared node slab.
// PushFront inserts at the MRU end; scanning from tail to head therefore
// visits nodes oldest-first, which is exactly the eviction order spec.md
// §4.2 specifies for both the history queue (FIFO by first access) and
// the cache queue (smallest last-access timestamp first, since access
// re-inserts a node at the front).
type dlist struct {
	head, tail int
}

func newDlist() dlist { return dlist{head: -1, tail: -1} }

func (l *dlist) pushFront(nodes []lruKNode, id int) {
	nodes[id].prev = -1
	nodes[id].next = l.head
	if l.head != -1 {
		nodes[l.head].prev = id
	}
	l.head = id
	if l.tail == -1 {
		l.tail = id
	}
}

func (l *dlist) erase(nodes []lruKNode, id int) {
	n := &nodes[id]
	if n.prev != -1 {
		nodes[n.prev].next = n.next
	} else {
		l.head = n.next
	}
	if n.next != -1 {
		nodes[n.next].prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.prev, n.next = -1, -1
}

// findEvictable scans the list from its LRU end (tail) toward its MRU
// end (head) and returns the first evictable member, if any.
func (l *dlist) findEvictable(nodes []lruKNode) (int, bool) {
	for cur := l.tail; cur != -1; cur = nodes[cur].prev {
		if nodes[cur].evictable {
			return cur, true
		}
	}
	return 0, false
}

// LRUKReplacer tracks per-frame access history and picks eviction
// victims by backward k-distance (spec.md §4.2). A single exclusive
// latch protects the whole structure; all operations are O(1) amortized
// except the cache scan, which is O(cache length) and acceptable at
// buffer-pool sizes (spec.md §9's noted open question).
type LRUKReplacer struct {
	mu             sync.Mutex
	k              int
	nodes          []lruKNode
	history        dlist
	cache          dlist
	evictableCount int
	clock          int64
}

// NewLRUKReplacer returns a replacer managing numFrames frames, each
// becoming cache-resident (finite k-distance) after k accesses.
func NewLRUKReplacer(numFrames int, k int) *LRUKReplacer {
	common.Assert(k >= 2, "lru_k_parameter must be >= 2")
	nodes := make([]lruKNode, numFrames)
	return &LRUKReplacer{
		k:       k,
		nodes:   nodes,
		history: newDlist(),
		cache:   newDlist(),
	}
}

func (r *LRUKReplacer) checkFrameID(frameID corebase.FrameID) {
	common.Assert(int(frameID) >= 0 && int(frameID) < len(r.nodes), "frame_id %d is out of range", frameID)
}

// RecordAccess registers an access to frameID, promoting it from the
// history queue to the cache queue the moment its access count reaches
// k.
func (r *LRUKReplacer) RecordAccess(frameID corebase.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkFrameID(frameID)

	id := int(frameID)
	r.clock++
	ts := r.clock
	n := &r.nodes[id]

	if !n.exists {
		*n = lruKNode{exists: true, k: 1, ts: ts, queue: queueHistory, prev: -1, next: -1}
		r.history.pushFront(r.nodes, id)
		return
	}

	n.ts = ts
	switch n.queue {
	case queueHistory:
		n.k++
		if n.k == r.k {
			r.history.erase(r.nodes, id)
			n.queue = queueCache
			r.cache.pushFront(r.nodes, id)
		}
		// k < r.k: stays put. History order reflects first access, not
		// most recent, so a repeat access below the threshold does not
		// reorder it.
	case queueCache:
		n.k++
		r.cache.erase(r.nodes, id)
		r.cache.pushFront(r.nodes, id)
	case queueNone:
		// SetEvictable ran before any RecordAccess; treat this as the
		// frame's first real access.
		n.k = 1
		n.queue = queueHistory
		r.history.pushFront(r.nodes, id)
	}
}

// SetEvictable marks frameID evictable or not. Setting a flag to its
// current value is a no-op. Frame ids at or beyond capacity are fatal.
func (r *LRUKReplacer) SetEvictable(frameID corebase.FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkFrameID(frameID)

	id := int(frameID)
	n := &r.nodes[id]
	if !n.exists {
		*n = lruKNode{exists: true, queue: queueNone, prev: -1, next: -1}
	}
	if n.evictable == evictable {
		return
	}
	n.evictable = evictable
	if evictable {
		r.evictableCount++
	} else {
		r.evictableCount--
	}
}

// Remove drops frameID from the replacer entirely. The frame must
// currently be evictable; an unknown frame id is silently ignored.
func (r *LRUKReplacer) Remove(frameID corebase.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := int(frameID)
	if id < 0 || id >= len(r.nodes) || !r.nodes[id].exists {
		return
	}
	n := &r.nodes[id]
	common.Assert(n.evictable, "removing frame %d which is not evictable", frameID)

	switch n.queue {
	case queueHistory:
		r.history.erase(r.nodes, id)
	case queueCache:
		r.cache.erase(r.nodes, id)
	}
	r.evictableCount--
	*n = lruKNode{}
}

// Evict picks the evictable frame with the largest backward k-distance:
// the oldest entry in the history queue if any exists, else the
// least-recently-used entry in the cache queue. Returns ok=false if
// nothing is evictable.
func (r *LRUKReplacer) Evict() (corebase.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evictableCount == 0 {
		return 0, false
	}

	if id, ok := r.history.findEvictable(r.nodes); ok {
		r.history.erase(r.nodes, id)
		r.evictableCount--
		r.nodes[id] = lruKNode{}
		return corebase.FrameID(id), true
	}
	if id, ok := r.cache.findEvictable(r.nodes); ok {
		r.cache.erase(r.nodes, id)
		r.evictableCount--
		r.nodes[id] = lruKNode{}
		return corebase.FrameID(id), true
	}
	return 0, false
}

// Size returns the number of frames currently evictable.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictableCount
}
