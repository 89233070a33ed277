package heap

import (
	"github.com/joshuapare/memkit/mem/diag"
	"github.com/joshuapare/memkit/mem/pool"
)

const (
	// DefaultHeapSize is the size of a freshly carved heap.
	DefaultHeapSize = 64 << 10
	// DefaultMinHeapSize is the floor heap creation halves down to.
	DefaultMinHeapSize = 4 << 10
	// DefaultLargeCutoff is the request size at and above which the pool tier
	// serves the allocation directly.
	DefaultLargeCutoff = 2048

	// heapTag marks pool regions owned by this tier; the low bits hold the
	// heap index.
	heapTag = 0x48500000 // "HP"
	// largeTag marks pool regions serving large requests for this tier.
	largeTag = 0x4C470000 // "LG"
	tagMask  = 0xFFFF0000

	// maxHeaps bounds live heaps: block headers and region tags hold the heap
	// index in 16 bits.
	maxHeaps = 1 << 16
)

// Config tunes the heap tier. Zero fields take defaults.
type Config struct {
	Classes     SizeClassConfig
	LargeCutoff int
	HeapSize    int
	MinHeapSize int
	// PoolFlags selects the pool and direction heaps and large allocations
	// come from.
	PoolFlags pool.Flags
	Reporter  *diag.Reporter
}

func (c Config) withDefaults() Config {
	if c.Classes == (SizeClassConfig{}) {
		c.Classes = DefaultClasses
	}
	if c.LargeCutoff == 0 {
		c.LargeCutoff = DefaultLargeCutoff
	}
	if c.HeapSize == 0 {
		c.HeapSize = DefaultHeapSize
	}
	if c.MinHeapSize == 0 {
		c.MinHeapSize = min(DefaultMinHeapSize, c.HeapSize)
	}
	return c
}

// Stats summarises the heap tier.
type Stats struct {
	Heaps           int // Live heaps
	HeapBytes       int // Bytes covered by live heaps
	FreeBytes       int // Free block bytes across heaps, headers included
	FreeBlocks      int
	UsedBlocks      int
	LargeAllocs     int // Live allocations served by the pool tier
	Allocs          int
	Frees           int
	HeapsCreated    int
	HeapsReleased   int
	HeapHalvings    int // Heap creations retried at half size
	Splits          int
	CoalesceForward int
	CoalesceBack    int
	ShrinkKept      int // Realloc shrinks that kept the original pointer
	Spills          int // Small requests served by the pool tier when no heap could grow
}
