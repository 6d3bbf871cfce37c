// Package page implements the B+ tree page layouts (C5, spec.md §4.5):
// fixed-size headers and key/value or key/child arrays living directly
// inside a frame's byte buffer, plus the insert/split/merge/borrow
// primitives that operate on a single page.
//
// A page's typed view (LeafPage / InternalPage) is a reinterpretation of
// the underlying bytes, never a copy — the same safety property the
// reference engine gets from a tagged union, here expressed as two
// distinct Go types chosen by the caller after checking TypeOf(data).
package page

import (
	"encoding/binary"

	"corebase"
)

// Type is the page-type discriminant stored in every page's first byte.
type Type uint8

const (
	Invalid Type = iota
	Leaf
	Internal
)

// Common header layout, shared by leaf and internal pages:
//
//	offset 0:  page type (1 byte)
//	offset 1:  size      (int32, 4 bytes)
//	offset 5:  max size  (int32, 4 bytes)
const commonHeaderSize = 9

// TypeOf reads the page-type discriminant out of a page's raw bytes,
// letting a caller decide whether to view it as a LeafPage or an
// InternalPage.
func TypeOf(data []byte) Type {
	return Type(data[0])
}

func writeType(data []byte, t Type) {
	data[0] = byte(t)
}

func readSize(data []byte) int {
	return int(int32(binary.NativeEndian.Uint32(data[1:5])))
}

func writeSize(data []byte, n int) {
	binary.NativeEndian.PutUint32(data[1:5], uint32(int32(n)))
}

func readMaxSize(data []byte) int {
	return int(int32(binary.NativeEndian.Uint32(data[5:9])))
}

func writeMaxSize(data []byte, n int) {
	binary.NativeEndian.PutUint32(data[5:9], uint32(int32(n)))
}

func readUint32(data []byte, off int) uint32 {
	return binary.NativeEndian.Uint32(data[off : off+4])
}

func writeUint32(data []byte, off int, v uint32) {
	binary.NativeEndian.PutUint32(data[off:off+4], v)
}

func readPageID(data []byte, off int) corebase.PageID {
	return corebase.PageID(int64(binary.NativeEndian.Uint64(data[off : off+8])))
}

func writePageID(data []byte, off int, id corebase.PageID) {
	binary.NativeEndian.PutUint64(data[off:off+8], uint64(int64(id)))
}

// SizeOf and MaxSizeOf read a page's common header without requiring a
// typed (leaf/internal) view, for callers like the tree's crabbing
// logic that only need to know whether a page is full.
func SizeOf(data []byte) int    { return readSize(data) }
func MaxSizeOf(data []byte) int { return readMaxSize(data) }

// IsFull reports whether a page (leaf or internal) is at capacity.
func IsFull(data []byte) bool { return readSize(data) >= readMaxSize(data) }

// MinSize returns the minimum number of entries a non-root node must
// hold after any operation completes: ceil((maxSize+1)/2), uniformly for
// leaf and internal pages (spec.md §9). The root is exempt from this
// floor; callers enforce that exemption themselves.
func MinSize(maxSize int) int {
	return (maxSize + 2) / 2
}

// Codec encodes and decodes a fixed-width key for storage directly in a
// page's byte array. The comparator is injected separately, as a value
// (spec.md §9): Codec only knows how to move bytes, never how to order
// them.
type Codec[K any] interface {
	Size() int
	Encode(buf []byte, key K)
	Decode(buf []byte) K
}

// Comparator orders two keys: negative if a < b, zero if equal,
// positive if a > b. This tree assumes unique keys.
type Comparator[K any] func(a, b K) int
