package pool

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/mem"
)

// newTestAllocator builds an allocator over a Go-heap backing slice sized to
// hold the given pools plus the reserved first granule.
func newTestAllocator(t testing.TB, gran int, sizes ...int) *Allocator {
	t.Helper()
	total := gran
	for _, s := range sizes {
		total += s
	}
	a, err := New(make([]byte, total), Config{Granularity: gran, Sizes: sizes})
	require.NoError(t, err)
	return a
}

// assertInvariants runs the consistency walk and fails the test on the first
// violation.
func assertInvariants(t testing.TB, a *Allocator) {
	t.Helper()
	require.NoError(t, a.Check())
}

// mustAlloc allocates or fails the test.
func mustAlloc(t testing.TB, a *Allocator, size, align int, flags Flags) mem.Ptr {
	t.Helper()
	p, err := a.Allocate(size, align, flags)
	require.NoError(t, err, "Allocate(%d, %d, %#x)", size, align, flags)
	require.NotEqual(t, mem.Nil, p)
	return p
}

// fill writes a recognisable byte pattern into the payload.
func fill(a *Allocator, p mem.Ptr, n int, seed byte) {
	b := a.Bytes(p, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
}

// requirePattern verifies a pattern written by fill.
func requirePattern(t testing.TB, a *Allocator, p mem.Ptr, n int, seed byte) {
	t.Helper()
	b := a.Bytes(p, n)
	for i := range b {
		if b[i] != seed+byte(i) {
			t.Fatalf("byte %d at 0x%X: got 0x%02X want 0x%02X", i, p, b[i], seed+byte(i))
		}
	}
}
