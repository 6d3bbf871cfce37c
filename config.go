// Package corebase wires together the buffer pool and B+ tree index that
// make up the hot path of a paged, single-node storage engine.
package corebase

// PageSize is the fixed size, in bytes, of every page on disk and every
// in-memory frame. It is canonical and not configurable: every page
// layout in storage/page assumes it.
const PageSize = 4096

// Config holds the tunables recognized by the engine (spec.md §6).
type Config struct {
	// BufferPoolCapacity is the number of frames (N) the buffer pool holds.
	BufferPoolCapacity int

	// LRUKParameter is k, the number of accesses after which a frame's
	// backward k-distance becomes finite. Must be >= 2.
	LRUKParameter int

	// LeafMaxSize is the maximum number of entries a leaf page may hold.
	// Must be >= 2.
	LeafMaxSize int

	// InternalMaxSize is the maximum number of children an internal page
	// may hold. Must be >= 3.
	InternalMaxSize int

	// DiskIOWorkers is the number of worker goroutines the disk scheduler
	// runs. Must be >= 1.
	DiskIOWorkers int
}

// DefaultConfig returns the configuration used by spec.md §8's boundary
// scenarios: a 50-frame pool, k=2, leaf max size 2, internal max size 3.
func DefaultConfig() Config {
	return Config{
		BufferPoolCapacity: 50,
		LRUKParameter:      2,
		LeafMaxSize:        2,
		InternalMaxSize:    3,
		DiskIOWorkers:      2,
	}
}
