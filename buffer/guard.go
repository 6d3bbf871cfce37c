package buffer

import (
	"corebase"
	"corebase/common"
)

// ReadGuard is a scoped shared (pin + shared-latch) acquisition on a
// frame (spec.md §4.4, C4). It is move-only in spirit — Go gives us no
// compiler-enforced move semantics, so callers must not retain a guard
// past Drop — and Drop is idempotent so it may be called explicitly
// ahead of any deferred cleanup.
type ReadGuard struct {
	pageID corebase.PageID
	frame  *Frame
	pool   *Pool
	valid  bool
}

func newReadGuard(pageID corebase.PageID, frame *Frame, pool *Pool) *ReadGuard {
	frame.Latch.RLock()
	return &ReadGuard{pageID: pageID, frame: frame, pool: pool, valid: true}
}

// PageID returns the page id this guard protects.
func (g *ReadGuard) PageID() corebase.PageID {
	common.Assert(g.valid, "use of a dropped read guard")
	return g.pageID
}

// Data returns the frame's byte buffer. Callers must treat it as
// read-only: the guard only holds a shared latch.
func (g *ReadGuard) Data() []byte {
	common.Assert(g.valid, "use of a dropped read guard")
	return g.frame.Data
}

// IsDirty reports whether the underlying frame differs from disk.
func (g *ReadGuard) IsDirty() bool {
	common.Assert(g.valid, "use of a dropped read guard")
	return g.frame.Dirty
}

// Drop releases the shared latch and unpins the frame. Safe to call
// more than once; only the first call has an effect.
func (g *ReadGuard) Drop() {
	if !g.valid {
		return
	}
	g.valid = false
	g.pool.dropReadGuard(g.frame)
}

// WriteGuard is a scoped exclusive (pin + exclusive-latch) acquisition
// on a frame (spec.md §4.4, C4). Dropping it forces the frame's dirty
// bit, per spec.md §4.4.
type WriteGuard struct {
	pageID corebase.PageID
	frame  *Frame
	pool   *Pool
	valid  bool
}

func newWriteGuard(pageID corebase.PageID, frame *Frame, pool *Pool) *WriteGuard {
	frame.Latch.Lock()
	return &WriteGuard{pageID: pageID, frame: frame, pool: pool, valid: true}
}

// PageID returns the page id this guard protects.
func (g *WriteGuard) PageID() corebase.PageID {
	common.Assert(g.valid, "use of a dropped write guard")
	return g.pageID
}

// Data returns the frame's byte buffer for read-only inspection.
func (g *WriteGuard) Data() []byte {
	common.Assert(g.valid, "use of a dropped write guard")
	return g.frame.Data
}

// DataMut returns the frame's byte buffer for mutation.
func (g *WriteGuard) DataMut() []byte {
	common.Assert(g.valid, "use of a dropped write guard")
	return g.frame.Data
}

// IsDirty reports whether the underlying frame differs from disk.
func (g *WriteGuard) IsDirty() bool {
	common.Assert(g.valid, "use of a dropped write guard")
	return g.frame.Dirty
}

// Drop forces the frame dirty, releases the exclusive latch, and unpins
// the frame. Safe to call more than once; only the first call has an
// effect.
func (g *WriteGuard) Drop() {
	if !g.valid {
		return
	}
	g.valid = false
	g.pool.dropWriteGuard(g.frame)
}
