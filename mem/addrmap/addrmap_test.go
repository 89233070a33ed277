package addrmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/mem"
)

func TestLookup_Empty(t *testing.T) {
	m := New(4096, 8)
	assert.Equal(t, 256, m.BucketSize())
	assert.Equal(t, [2]int32{None, None}, m.Lookup(100))
	assert.Equal(t, [2]int32{None, None}, m.Lookup(1<<20), "beyond span")
}

func TestInsert_SharedBoundaryBucket(t *testing.T) {
	m := New(4096, 8)

	// [100, 600) ends inside bucket 2, [600, 1000) starts there.
	require.NoError(t, m.Insert(100, 600, 1))
	require.NoError(t, m.Insert(600, 1000, 2))

	assert.Equal(t, [2]int32{1, None}, m.Lookup(100))
	assert.Equal(t, [2]int32{1, None}, m.Lookup(300))
	assert.Equal(t, [2]int32{1, 2}, m.Lookup(550))
	assert.Equal(t, [2]int32{1, 2}, m.Lookup(700))
	assert.Equal(t, [2]int32{2, None}, m.Lookup(999))
	assert.Equal(t, [2]int32{None, None}, m.Lookup(1024))

	m.Remove(100, 600, 1)
	assert.Equal(t, [2]int32{2, None}, m.Lookup(550))
	assert.Equal(t, [2]int32{None, None}, m.Lookup(300))

	// Removing again changes nothing.
	m.Remove(100, 600, 1)
	assert.Equal(t, [2]int32{2, None}, m.Lookup(550))
}

func TestInsert_ThirdOwnerRollsBack(t *testing.T) {
	m := New(4096, 8)
	require.NoError(t, m.Insert(800, 900, 1))
	require.NoError(t, m.Insert(900, 1000, 2))

	// Spans buckets 1..3; bucket 3 already holds owners 1 and 2.
	err := m.Insert(400, 1000, 3)
	require.ErrorIs(t, err, ErrBucketFull)
	for _, p := range []mem.Ptr{450, 700, 999} {
		assert.NotContains(t, m.Lookup(p), int32(3), "ptr %d", p)
	}
}

func TestInsert_OutOfRange(t *testing.T) {
	m := New(1024, 8)
	require.ErrorIs(t, m.Insert(1000, 1100, 1), ErrOutOfRange)
	require.ErrorIs(t, m.Insert(50, 50, 1), ErrOutOfRange)
}
