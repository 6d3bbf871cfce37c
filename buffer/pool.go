package buffer

import (
	"sync"
	"sync/atomic"

	"corebase"
	"corebase/common"
	"corebase/disk"
	"corebase/disk/scheduler"
)

// Pool is the buffer pool manager (C3, spec.md §4.3): N frames, a page
// table, a free list, an LRU-K replacer, and a disk scheduler, handing
// out scoped page guards to callers.
type Pool struct {
	mu sync.Mutex // the single buffer-pool latch (spec.md §5)

	frames    []*Frame
	pageTable map[corebase.PageID]corebase.FrameID
	freeList  []corebase.FrameID

	replacer  *LRUKReplacer
	scheduler *scheduler.Scheduler
	dm        disk.Manager

	nextPageID atomic.Int64
	stats      *common.Stats
}

// NewPool constructs a pool of cfg.BufferPoolCapacity frames backed by
// dm, with an LRU-K replacer parameterized by cfg.LRUKParameter and a
// disk scheduler running cfg.DiskIOWorkers workers.
func NewPool(cfg corebase.Config, dm disk.Manager) *Pool {
	common.Assert(cfg.BufferPoolCapacity > 0, "buffer_pool_capacity must be positive")

	frames := make([]*Frame, cfg.BufferPoolCapacity)
	free := make([]corebase.FrameID, cfg.BufferPoolCapacity)
	for i := range frames {
		frames[i] = NewFrame(corebase.FrameID(i))
		free[i] = corebase.FrameID(i)
	}

	return &Pool{
		frames:    frames,
		pageTable: make(map[corebase.PageID]corebase.FrameID, cfg.BufferPoolCapacity),
		freeList:  free,
		replacer:  NewLRUKReplacer(cfg.BufferPoolCapacity, cfg.LRUKParameter),
		scheduler: scheduler.New(dm, cfg.DiskIOWorkers),
		dm:        dm,
		stats:     common.NewStats(),
	}
}

// Size returns the number of frames this pool manages.
func (p *Pool) Size() int { return len(p.frames) }

// GetPinCount is a test hook returning the pin count of a resident page.
func (p *Pool) GetPinCount(pageID corebase.PageID) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fid, ok := p.pageTable[pageID]
	if !ok {
		return 0, false
	}
	return p.frames[fid].PinCount.Load(), true
}

// Stats exposes the pool's hit/miss/eviction counters.
func (p *Pool) Stats() map[string]int64 { return p.stats.Snapshot() }

// NewPage allocates a new page id on disk. No frame is assigned until a
// caller asks to read or write the page (spec.md §4.3).
func (p *Pool) NewPage() corebase.PageID {
	pid := corebase.PageID(p.nextPageID.Add(1) - 1)
	p.dm.IncreaseDiskSpace(pid + 1)
	return pid
}

// DeletePage removes a page from both disk and memory. If the page is
// not resident, this is a no-op that succeeds; if it is resident but
// pinned, it fails without side effects.
func (p *Pool) DeletePage(pageID corebase.PageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[pageID]
	if !ok {
		return true
	}
	frame := p.frames[fid]
	if frame.PinCount.Load() > 0 {
		return false
	}

	p.replacer.Remove(fid)
	delete(p.pageTable, pageID)
	frame.Reset()
	p.freeList = append(p.freeList, fid)
	p.dm.DeallocatePage(pageID)
	return true
}

// CheckedReadPage acquires a shared guard over pageID, bringing it into
// memory if necessary. It returns ok=false only when every frame is
// pinned and none can be evicted.
func (p *Pool) CheckedReadPage(pageID corebase.PageID) (*ReadGuard, bool) {
	fid, ok := p.allocateFrame(pageID, true)
	if !ok {
		return nil, false
	}
	return newReadGuard(pageID, p.frames[fid], p), true
}

// CheckedWritePage acquires an exclusive guard over pageID, bringing it
// into memory if necessary. It returns ok=false only when every frame is
// pinned and none can be evicted.
func (p *Pool) CheckedWritePage(pageID corebase.PageID) (*WriteGuard, bool) {
	fid, ok := p.allocateFrame(pageID, true)
	if !ok {
		return nil, false
	}
	return newWriteGuard(pageID, p.frames[fid], p), true
}

// ReadPage is the unchecked convenience form of CheckedReadPage: it
// aborts the process if the buffer pool is exhausted (spec.md §7).
func (p *Pool) ReadPage(pageID corebase.PageID) *ReadGuard {
	g, ok := p.CheckedReadPage(pageID)
	common.Assert(ok, "ReadPage: buffer pool exhausted fetching page %d", pageID)
	return g
}

// WritePage is the unchecked convenience form of CheckedWritePage: it
// aborts the process if the buffer pool is exhausted (spec.md §7).
func (p *Pool) WritePage(pageID corebase.PageID) *WriteGuard {
	g, ok := p.CheckedWritePage(pageID)
	common.Assert(ok, "WritePage: buffer pool exhausted fetching page %d", pageID)
	return g
}

// NewPageGuarded allocates a new page and immediately returns a write
// guard over it, skipping the read-from-disk step since there is
// nothing on disk yet to read.
func (p *Pool) NewPageGuarded() (corebase.PageID, *WriteGuard) {
	pageID := p.NewPage()
	fid, ok := p.allocateFrame(pageID, false)
	common.Assert(ok, "NewPageGuarded: buffer pool exhausted allocating page %d", pageID)
	return pageID, newWriteGuard(pageID, p.frames[fid], p)
}

// FlushPage writes a resident page's bytes out to disk synchronously.
// It returns false if the page is not currently resident.
func (p *Pool) FlushPage(pageID corebase.PageID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	fid, ok := p.pageTable[pageID]
	if !ok {
		return false
	}
	p.flushFrameLocked(p.frames[fid])
	return true
}

// FlushAll writes every resident page out to disk synchronously.
func (p *Pool) FlushAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, frame := range p.frames {
		if frame.PageID != corebase.InvalidPageID {
			p.flushFrameLocked(frame)
		}
	}
}

// Close shuts down the disk scheduler's workers. Call after FlushAll.
func (p *Pool) Close() {
	p.scheduler.Close()
}

// allocateFrame implements spec.md §4.3's three-path algorithm: resident
// hit, free-list pop, or replacer-driven eviction. It holds the pool
// latch for its entire duration, including any synchronous I/O it must
// wait on — safe because scheduler workers never acquire the pool
// latch.
func (p *Pool) allocateFrame(pageID corebase.PageID, fromDisk bool) (corebase.FrameID, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if fid, ok := p.pageTable[pageID]; ok {
		p.stats.Incr("hit", 1)
		p.pinLocked(fid)
		return fid, true
	}
	p.stats.Incr("miss", 1)

	if n := len(p.freeList); n > 0 {
		fid := p.freeList[n-1]
		p.freeList = p.freeList[:n-1]
		frame := p.frames[fid]
		frame.Reset()
		frame.PageID = pageID
		p.pageTable[pageID] = fid
		if fromDisk {
			p.readPageLocked(pageID, frame)
		} else {
			frame.Dirty = true
		}
		p.pinLocked(fid)
		return fid, true
	}

	victim, ok := p.replacer.Evict()
	if !ok {
		return 0, false
	}
	p.stats.Incr("eviction", 1)
	victimFrame := p.frames[victim]
	if victimFrame.Dirty {
		p.flushFrameLocked(victimFrame)
	}
	delete(p.pageTable, victimFrame.PageID)
	victimFrame.Reset()
	victimFrame.PageID = pageID
	p.pageTable[pageID] = victim
	if fromDisk {
		p.readPageLocked(pageID, victimFrame)
	} else {
		victimFrame.Dirty = true
	}
	p.replacer.SetEvictable(victim, false)
	p.pinLocked(victim)
	return victim, true
}

// pinLocked increments a frame's pin count and records the access with
// the replacer, marking it not-evictable. Caller must hold p.mu.
func (p *Pool) pinLocked(fid corebase.FrameID) {
	p.frames[fid].PinCount.Add(1)
	p.replacer.RecordAccess(fid)
	p.replacer.SetEvictable(fid, false)
}

func (p *Pool) readPageLocked(pageID corebase.PageID, frame *Frame) {
	done := common.NewFuture()
	p.scheduler.Schedule(&scheduler.Request{IsWrite: false, PageID: pageID, Buf: frame.Data, Done: done})
	ok := done.Wait()
	common.Assert(ok, "read of page %d failed", pageID)
}

func (p *Pool) flushFrameLocked(frame *Frame) {
	done := common.NewFuture()
	p.scheduler.Schedule(&scheduler.Request{IsWrite: true, PageID: frame.PageID, Buf: frame.Data, Done: done})
	ok := done.Wait()
	common.Assert(ok, "flush of page %d failed", frame.PageID)
	frame.Dirty = false
}

// dropReadGuard releases a shared guard's hold on frame: it takes the
// pool latch, releases the frame's shared latch while holding it, and
// unpins, marking the frame evictable again if its pin count reaches
// zero. Mirrors the locking discipline of WritePageGuard/ReadPageGuard
// drop in the reference engine.
func (p *Pool) dropReadGuard(frame *Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame.Latch.RUnlock()
	if frame.PinCount.Add(-1) == 0 {
		p.replacer.SetEvictable(frame.ID, true)
	}
}

// dropWriteGuard is dropReadGuard's exclusive counterpart. It forces the
// frame's dirty bit before releasing the exclusive latch, per spec.md
// §4.4.
func (p *Pool) dropWriteGuard(frame *Frame) {
	p.mu.Lock()
	defer p.mu.Unlock()
	frame.Dirty = true
	frame.Latch.Unlock()
	if frame.PinCount.Add(-1) == 0 {
		p.replacer.SetEvictable(frame.ID, true)
	}
}
