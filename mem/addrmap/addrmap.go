// Package addrmap maps coarse address buckets to the owners whose ranges
// cover them, answering "who might own this pointer" in O(1).
//
// Owners must be at least one bucket long and must not overlap. Under those
// conditions a bucket intersects at most two owners: one ending inside it and
// one starting inside it.
package addrmap

import (
	"errors"
	"fmt"

	"github.com/joshuapare/memkit/mem"
)

// None marks an empty bucket entry.
const None int32 = -1

var (
	// ErrBucketFull indicates a third owner in one bucket: an owner range was
	// shorter than a bucket or overlapped another.
	ErrBucketFull = errors.New("addrmap: bucket already holds two owners")

	// ErrOutOfRange indicates a range outside the mapped span.
	ErrOutOfRange = errors.New("addrmap: range outside mapped span")
)

// Map is a fixed table of buckets covering [0, span).
type Map struct {
	shift   uint
	buckets [][2]int32
}

// New builds a map covering span bytes with buckets of 1<<shift bytes.
func New(span int, shift uint) *Map {
	n := (span + 1<<shift - 1) >> shift
	m := &Map{shift: shift, buckets: make([][2]int32, n)}
	for i := range m.buckets {
		m.buckets[i] = [2]int32{None, None}
	}
	return m
}

// BucketSize returns the bucket size in bytes.
func (m *Map) BucketSize() int { return 1 << m.shift }

// Insert records id as an owner of [lo, hi). On error nothing is recorded.
func (m *Map) Insert(lo, hi mem.Ptr, id int32) error {
	first, last, err := m.span(lo, hi)
	if err != nil {
		return err
	}
	for i := first; i <= last; i++ {
		b := &m.buckets[i]
		if b[0] != None && b[1] != None {
			m.remove(first, i-1, id)
			return fmt.Errorf("%w: bucket %d, owners %d and %d, inserting %d", ErrBucketFull, i, b[0], b[1], id)
		}
		if b[0] == None {
			b[0] = id
		} else {
			b[1] = id
		}
	}
	return nil
}

// Remove forgets id as an owner of [lo, hi). Removing an absent owner is a no-op.
func (m *Map) Remove(lo, hi mem.Ptr, id int32) {
	first, last, err := m.span(lo, hi)
	if err != nil {
		return
	}
	m.remove(first, last, id)
}

func (m *Map) remove(first, last int, id int32) {
	for i := first; i <= last; i++ {
		b := &m.buckets[i]
		if b[1] == id {
			b[1] = None
		}
		if b[0] == id {
			b[0], b[1] = b[1], None
		}
	}
}

// Lookup returns the owners whose ranges may contain p. Unused entries are None.
func (m *Map) Lookup(p mem.Ptr) [2]int32 {
	i := int(p) >> m.shift
	if i >= len(m.buckets) {
		return [2]int32{None, None}
	}
	return m.buckets[i]
}

func (m *Map) span(lo, hi mem.Ptr) (int, int, error) {
	if hi <= lo || int(hi-1)>>m.shift >= len(m.buckets) {
		return 0, 0, fmt.Errorf("%w: [0x%X, 0x%X)", ErrOutOfRange, lo, hi)
	}
	return int(lo) >> m.shift, int(hi-1) >> m.shift, nil
}
