package page

import "encoding/binary"

// Int64Codec is the Codec[int64] used by the demo CLI and the index
// package's tests: an 8-byte big-endian encoding of the key's two's
// complement bits, chosen over host order so that byte-wise comparison of
// encoded non-negative keys agrees with numeric comparison (a negative
// key's set sign bit makes it compare greater byte-wise). The tree itself
// orders keys only through the Comparator; it is just convenient for
// eyeballing a hex dump.
type Int64Codec struct{}

func (Int64Codec) Size() int { return 8 }

func (Int64Codec) Encode(buf []byte, key int64) {
	binary.BigEndian.PutUint64(buf, uint64(key))
}

func (Int64Codec) Decode(buf []byte) int64 {
	return int64(binary.BigEndian.Uint64(buf))
}

// CompareInt64 is the Comparator[int64] paired with Int64Codec.
func CompareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
