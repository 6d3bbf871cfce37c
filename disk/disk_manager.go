// Package disk provides the raw, byte-addressed paged file that every
// frame is eventually faulted in from or written back to. It is the
// external collaborator spec.md §6 calls DiskManager: synchronous,
// single-page granularity, no caching of its own.
package disk

import (
	"fmt"
	"io"
	"os"
	"sync"

	"corebase"
	"corebase/common"
)

// Manager implements DiskManager over a single OS file. Page 0 is
// reserved for a tree's header page (spec.md §3); the file grows lazily
// as IncreaseDiskSpace is asked to cover higher page ids.
type Manager interface {
	// ReadPage fills buf (len == corebase.PageSize) with the bytes of
	// pageID. Reading a page beyond the file's allocated extent is a
	// programming error: callers must IncreaseDiskSpace first.
	ReadPage(pageID corebase.PageID, buf []byte)

	// WritePage writes buf (len == corebase.PageSize) to pageID.
	WritePage(pageID corebase.PageID, buf []byte)

	// IncreaseDiskSpace ensures the file has room for every page id up
	// to, but not including, upToPageID.
	IncreaseDiskSpace(upToPageID corebase.PageID)

	// DeallocatePage marks pageID's slot free. This engine never
	// reclaims the disk space (spec.md §1 Non-goals); the call exists so
	// callers have a hook if a future implementation wants to.
	DeallocatePage(pageID corebase.PageID)

	// Close releases the underlying file handle.
	Close() error
}

type fileManager struct {
	mu       sync.Mutex
	file     *os.File
	numPages int64
}

// NewManager opens (creating if necessary) a paged file at path.
func NewManager(path string) (Manager, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	return &fileManager{
		file:     f,
		numPages: stat.Size() / int64(corebase.PageSize),
	}, nil
}

func (m *fileManager) ReadPage(pageID corebase.PageID, buf []byte) {
	common.Assert(len(buf) == corebase.PageSize, "ReadPage buffer must be PageSize bytes")
	m.mu.Lock()
	defer m.mu.Unlock()

	off := int64(pageID) * int64(corebase.PageSize)
	n, err := m.file.ReadAt(buf, off)
	if err == io.EOF && n == 0 {
		// a page that was allocated but never written reads as zeros.
		for i := range buf {
			buf[i] = 0
		}
		return
	}
	if err != nil && err != io.EOF {
		fatalIOError("ReadPage", pageID, err)
	}
	for ; n < len(buf); n++ {
		buf[n] = 0
	}
}

func (m *fileManager) WritePage(pageID corebase.PageID, buf []byte) {
	common.Assert(len(buf) == corebase.PageSize, "WritePage buffer must be PageSize bytes")
	m.mu.Lock()
	defer m.mu.Unlock()

	off := int64(pageID) * int64(corebase.PageSize)
	if _, err := m.file.WriteAt(buf, off); err != nil {
		fatalIOError("WritePage", pageID, err)
	}
	if err := m.file.Sync(); err != nil {
		fatalIOError("WritePage(sync)", pageID, err)
	}
	if want := int64(pageID) + 1; want > m.numPages {
		m.numPages = want
	}
}

func (m *fileManager) IncreaseDiskSpace(upToPageID corebase.PageID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if int64(upToPageID) <= m.numPages {
		return
	}
	size := int64(upToPageID) * int64(corebase.PageSize)
	if err := m.file.Truncate(size); err != nil {
		fatalIOError("IncreaseDiskSpace", upToPageID, err)
	}
	m.numPages = int64(upToPageID)
}

func (m *fileManager) DeallocatePage(corebase.PageID) {
	// space reclamation is out of scope (spec.md §1 Non-goals).
}

func (m *fileManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file.Close()
}

// fatalIOError aborts the process: spec.md §7 treats I/O errors as
// fatal, not recoverable, since the disk manager is assumed reliable.
func fatalIOError(op string, pageID corebase.PageID, err error) {
	panic(fmt.Sprintf("disk: %s failed for page %d: %v", op, pageID, err))
}
