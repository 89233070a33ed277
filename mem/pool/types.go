package pool

import "github.com/joshuapare/memkit/mem/diag"

const (
	// HeaderSize is the in-line region header size. Every region starts with it.
	HeaderSize = 32

	// MinAlign is the alignment used when a request passes 0.
	MinAlign = 8

	// DefaultGranularity is the block size used when Config.Granularity is 0.
	DefaultGranularity = 64

	// MaxPools is the number of pools one Allocator can own.
	MaxPools = 2
)

// Flags select the pool, the allocation direction, and zero-fill.
type Flags uint32

const (
	// Bottom allocates from the lowest-address free region that fits.
	Bottom Flags = 0
	// Top allocates from the highest-address free region that fits, carving
	// from its high end.
	Top Flags = 1 << 0
	// Clear zero-fills the payload.
	Clear Flags = 1 << 1

	poolShift = 8
)

// PoolID returns the flag bits selecting pool id.
func PoolID(id int) Flags { return Flags(id) << poolShift }

// Pool returns the pool id encoded in f.
func (f Flags) Pool() int { return int(f >> poolShift) }

// Config describes the pools carved out of the backing range.
type Config struct {
	// Granularity is the block size in bytes: a power of two >= HeaderSize.
	Granularity int
	// Sizes holds one or two pool sizes in bytes, each a multiple of
	// Granularity and at least two blocks (one for the fence).
	Sizes []int
	// Reporter receives diagnostics. May be nil.
	Reporter *diag.Reporter
}

// Stats is a per-pool capacity snapshot.
type Stats struct {
	Total       int // Pool size in bytes, fence included
	Free        int // Bytes held by free regions, headers included
	LargestFree int // Largest payload a single request could get (natural alignment)
	FreeRegions int
	UsedRegions int // Allocated regions, fence excluded
}

// Counters are cumulative operation counts across all pools.
type Counters struct {
	Allocs       int // successful allocations
	Releases     int
	Resizes      int // successful resizes
	GrowInBlock  int // grown within the blocks already held
	GrowInPlace  int // grown by absorbing the following region
	GrowBackward int // grown by sliding into the preceding region
	Moves        int // resized by allocate+copy+release
	Shrinks      int
	Failures     int
	Splits       int
	Coalesces    int
	ChainWalks   int // interior free-list insertions that walked the region chain
}
