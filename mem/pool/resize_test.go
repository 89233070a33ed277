package pool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/mem"
)

func TestResize_SameSizeIsNoop(t *testing.T) {
	a := newTestAllocator(t, 64, 4096)
	p := mustAlloc(t, a, 100, 0, Bottom)
	before, _ := a.Stats(0)

	q, err := a.Resize(p, 100)
	require.NoError(t, err)
	assert.Equal(t, p, q)

	after, _ := a.Stats(0)
	assert.Equal(t, before, after)
}

func TestResize_ShrinkInPlace(t *testing.T) {
	a := newTestAllocator(t, 64, 8192)
	p := mustAlloc(t, a, 1000, 0, Bottom)
	fill(a, p, 1000, 7)

	q, err := a.Resize(p, 100)
	require.NoError(t, err)
	assert.Equal(t, p, q)
	requirePattern(t, a, q, 100, 7)

	size, err := a.Size(q)
	require.NoError(t, err)
	assert.Equal(t, 100, size)

	st, _ := a.Stats(0)
	assert.Equal(t, 1, st.FreeRegions, "released tail merges with the free remainder")
	assert.Equal(t, 8192-64-3*64, st.Free)
	assertInvariants(t, a)
}

func TestResize_ShrinkWithinBlockKeepsRegion(t *testing.T) {
	a := newTestAllocator(t, 64, 4096)
	p := mustAlloc(t, a, 90, 0, Bottom)
	before, _ := a.Stats(0)

	q, err := a.Resize(p, 60)
	require.NoError(t, err)
	assert.Equal(t, p, q)

	after, _ := a.Stats(0)
	assert.Equal(t, before, after, "90 and 60 bytes both need 2 blocks")
}

func TestResize_GrowIntoFollowingRegion(t *testing.T) {
	a := newTestAllocator(t, 64, 8192)
	p := mustAlloc(t, a, 100, 0, Bottom)
	fill(a, p, 100, 3)

	q, err := a.Resize(p, 1000)
	require.NoError(t, err)
	assert.Equal(t, p, q)
	requirePattern(t, a, q, 100, 3)
	assert.Equal(t, 1, a.Counters().GrowInPlace)
	assertInvariants(t, a)
}

func TestResize_GrowIntoPrecedingRegion(t *testing.T) {
	a := newTestAllocator(t, 64, 8192)
	first := mustAlloc(t, a, 100, 0, Bottom)
	mid := mustAlloc(t, a, 100, 0, Bottom)
	guard := mustAlloc(t, a, 100, 0, Bottom)
	fill(a, mid, 100, 9)

	require.NoError(t, a.Release(first))

	// 250 bytes need 5 blocks: mid's 3 plus 2 of first's 3.
	q, err := a.Resize(mid, 250)
	require.NoError(t, err)
	assert.Equal(t, first, q, "payload slides down to the preceding region")
	requirePattern(t, a, q, 100, 9)
	assert.Equal(t, 1, a.Counters().GrowBackward)
	assertInvariants(t, a)

	// The leftover block sits between the moved payload and the guard.
	st, _ := a.Stats(0)
	assert.Equal(t, 2, st.FreeRegions)
	require.True(t, a.Owns(guard))
}

func TestResize_GrowUsesBothNeighbours(t *testing.T) {
	a := newTestAllocator(t, 64, 8192)
	first := mustAlloc(t, a, 100, 0, Bottom)
	mid := mustAlloc(t, a, 100, 0, Bottom)
	after := mustAlloc(t, a, 100, 0, Bottom)
	guard := mustAlloc(t, a, 100, 0, Bottom)
	fill(a, mid, 100, 5)

	require.NoError(t, a.Release(first))
	require.NoError(t, a.Release(after))

	// 9 blocks: exactly first + mid + after.
	q, err := a.Resize(mid, 9*64-HeaderSize)
	require.NoError(t, err)
	assert.Equal(t, first, q)
	requirePattern(t, a, q, 100, 5)
	assertInvariants(t, a)

	st, _ := a.Stats(0)
	assert.Equal(t, 1, st.FreeRegions, "only the tail after the guard is free")
	require.True(t, a.Owns(guard))
}

func TestResize_MovesWhenNeighboursBusy(t *testing.T) {
	a := newTestAllocator(t, 64, 8192)
	p := mustAlloc(t, a, 100, 0, Bottom)
	guard := mustAlloc(t, a, 100, 0, Bottom)
	fill(a, p, 100, 11)

	q, err := a.Resize(p, 2000)
	require.NoError(t, err)
	assert.NotEqual(t, p, q)
	requirePattern(t, a, q, 100, 11)
	assert.False(t, a.Owns(p), "old region released")
	assert.True(t, a.Owns(guard))
	assert.Equal(t, 1, a.Counters().Moves)
	assertInvariants(t, a)
}

func TestResize_MoveKeepsDirection(t *testing.T) {
	a := newTestAllocator(t, 64, 8192)
	p := mustAlloc(t, a, 100, 0, Top)
	mustAlloc(t, a, 100, 0, Top)

	q, err := a.Resize(p, 500)
	require.NoError(t, err)
	_, r, err := a.locate(q)
	require.NoError(t, err)
	assert.True(t, a.isTop(r), "moved region is still a top allocation")
	assertInvariants(t, a)
}

func TestResize_FailureLeavesOriginal(t *testing.T) {
	a := newTestAllocator(t, 64, 4096)
	p := mustAlloc(t, a, 100, 0, Bottom)
	mustAlloc(t, a, 100, 0, Bottom)
	fill(a, p, 100, 13)
	before, _ := a.Stats(0)

	q, err := a.Resize(p, 4000)
	require.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, mem.Nil, q)

	after, _ := a.Stats(0)
	assert.Equal(t, before, after)
	requirePattern(t, a, p, 100, 13)
	size, err := a.Size(p)
	require.NoError(t, err)
	assert.Equal(t, 100, size)
	assertInvariants(t, a)
}

func TestResize_NilAndZero(t *testing.T) {
	a := newTestAllocator(t, 64, 4096)

	p, err := a.Resize(mem.Nil, 64)
	require.NoError(t, err)
	require.True(t, a.Owns(p))

	q, err := a.Resize(p, 0)
	require.NoError(t, err)
	assert.Equal(t, mem.Nil, q)
	assert.False(t, a.Owns(p))
	assertInvariants(t, a)
}

func TestResize_KeepsAlignment(t *testing.T) {
	a := newTestAllocator(t, 64, 8192)
	first := mustAlloc(t, a, 10, 64, Bottom)
	mid := mustAlloc(t, a, 10, 64, Bottom)
	mustAlloc(t, a, 10, 64, Bottom)
	require.NoError(t, a.Release(first))

	q, err := a.Resize(mid, 100)
	require.NoError(t, err)
	assert.Zero(t, int(q)%64)
	assertInvariants(t, a)
}

func TestCounters_OnlySuccessfulOperations(t *testing.T) {
	a := newTestAllocator(t, 64, 4096)

	_, err := a.Allocate(0, 0, Bottom)
	require.ErrorIs(t, err, ErrZeroSize)
	_, err = a.Allocate(1<<20, 0, Bottom)
	require.ErrorIs(t, err, ErrNoSpace)
	assert.Equal(t, 0, a.Counters().Allocs)
	assert.Equal(t, 1, a.Counters().Failures)

	p := mustAlloc(t, a, 60, 0, Bottom)
	assert.Equal(t, 1, a.Counters().Allocs)

	q, err := a.Resize(p, 90)
	require.NoError(t, err)
	assert.Equal(t, p, q)
	q, err = a.Resize(q, 60)
	require.NoError(t, err)
	assert.Equal(t, p, q)
	_, err = a.Resize(q, 1<<20)
	require.ErrorIs(t, err, ErrNoSpace)

	c := a.Counters()
	assert.Equal(t, 1, c.GrowInBlock, "60 and 90 bytes both need 2 blocks")
	assert.Equal(t, 1, c.Shrinks)
	assert.Equal(t, 2, c.Resizes, "the failed grow is not counted")
	assertInvariants(t, a)
}
