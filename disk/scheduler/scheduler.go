// Package scheduler implements the disk scheduler (spec.md §4.1, C1): an
// asynchronous queue in front of the raw disk manager that preserves
// per-page read/write ordering and signals completion via one-shot
// futures.
package scheduler

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"corebase"
	"corebase/common"
	"corebase/disk"
)

// Request is a single scheduled I/O operation. Buf is the caller-owned
// buffer: for a write it holds the bytes to persist, for a read it is
// filled in place. Done is resolved once the operation (and, for writes,
// the fsync) completes.
type Request struct {
	IsWrite bool
	PageID  corebase.PageID
	Buf     []byte
	Done    *common.Future

	id uuid.UUID // correlates a fatal I/O abort back to the request in logs
}

// Scheduler fans requests out across worker goroutines, sharding by
// page id so that all requests for a fixed page execute in the order
// they were scheduled — a write followed by a read for the same page
// always observes the write.
type Scheduler struct {
	dm      disk.Manager
	queues  []chan *Request
	workers int
	wg      sync.WaitGroup
}

// New starts a scheduler with the given worker count, each draining its
// own private FIFO queue. The underlying disk manager is assumed
// reliable (spec.md §4.1); any I/O error it raises aborts the process.
func New(dm disk.Manager, workers int) *Scheduler {
	common.Assert(workers >= 1, "disk scheduler needs at least one worker")
	s := &Scheduler{
		dm:      dm,
		queues:  make([]chan *Request, workers),
		workers: workers,
	}
	for i := 0; i < workers; i++ {
		s.queues[i] = make(chan *Request, 64)
		s.wg.Add(1)
		go s.worker(i)
	}
	return s
}

// Schedule enqueues a request. It never blocks the caller on the I/O
// itself — only on queue capacity, which is generous — and returns
// immediately; the caller waits on req.Done when it needs the result.
func (s *Scheduler) Schedule(req *Request) {
	common.Assert(req.PageID >= 0, "page_id should be non-negative")
	common.Assert(len(req.Buf) == corebase.PageSize, "disk request buffer must be PageSize bytes")
	id, err := uuid.NewUUID()
	if err == nil {
		req.id = id
	}
	shard := int(uint64(req.PageID) % uint64(s.workers))
	s.queues[shard] <- req
}

// Close signals every worker to exit after draining its queue, and
// waits for them to finish. It does not flush any pending writes beyond
// those already scheduled.
func (s *Scheduler) Close() {
	for _, q := range s.queues {
		close(q)
	}
	s.wg.Wait()
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	for req := range s.queues[id] {
		s.execute(req)
	}
}

func (s *Scheduler) execute(req *Request) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("disk scheduler: fatal I/O error on request %s (page %d): %v", req.id, req.PageID, r)
			panic(r)
		}
	}()

	if req.IsWrite {
		s.dm.WritePage(req.PageID, req.Buf)
	} else {
		s.dm.ReadPage(req.PageID, req.Buf)
	}
	req.Done.Resolve(true)
}
