package format

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAlignUp(t *testing.T) {
	cases := []struct {
		n, a, want int
	}{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{9, 8, 16},
		{33, 64, 64},
		{65, 64, 128},
	}
	for _, c := range cases {
		require.Equal(t, c.want, AlignUp(c.n, c.a), "AlignUp(%d, %d)", c.n, c.a)
	}
}

func TestAlignDownAndPow2(t *testing.T) {
	require.Equal(t, 64, AlignDown(127, 64))
	require.Equal(t, 128, AlignDown(128, 64))

	require.True(t, IsPow2(1))
	require.True(t, IsPow2(64))
	require.False(t, IsPow2(0))
	require.False(t, IsPow2(48))
	require.False(t, IsPow2(-8))

	require.Equal(t, 0, Log2(1))
	require.Equal(t, 10, Log2(1024))
	require.Equal(t, 10, Log2(1500))
}

func TestEncodingRoundTrip(t *testing.T) {
	b := make([]byte, 16)
	PutU32(b, 4, 0xDEADBEEF)
	PutU16(b, 10, 0xB1C5)
	require.Equal(t, uint32(0xDEADBEEF), ReadU32(b, 4))
	require.Equal(t, uint16(0xB1C5), ReadU16(b, 10))
	require.Equal(t, byte(0xEF), b[4], "little-endian low byte first")

	Clear(b, 4, 4)
	require.Zero(t, ReadU32(b, 4))
}
