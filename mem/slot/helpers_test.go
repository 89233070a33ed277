package slot

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/addrmap"
	"github.com/joshuapare/memkit/mem/diag"
	"github.com/joshuapare/memkit/mem/heap"
	"github.com/joshuapare/memkit/mem/pool"
)

const testGran = 64

type fixture struct {
	slots *Allocator
	heap  *heap.Allocator
	pool  *pool.Allocator
}

// newFixture stacks pool, heap and slot tiers over one pool of poolSize bytes.
func newFixture(t testing.TB, poolSize int, hc heap.Config, sc Config) *fixture {
	t.Helper()
	backing := make([]byte, testGran+poolSize)
	pa, err := pool.New(backing, pool.Config{Granularity: testGran, Sizes: []int{poolSize}, Reporter: sc.Reporter})
	require.NoError(t, err)
	hc.Reporter = sc.Reporter
	ha, err := heap.New(pa, hc)
	require.NoError(t, err)
	idx := addrmap.New(len(backing), 10)
	sa, err := New(ha, idx, sc)
	require.NoError(t, err)
	return &fixture{slots: sa, heap: ha, pool: pa}
}

func newDefaultFixture(t testing.TB) *fixture {
	return newFixture(t, 256<<10, heap.Config{PoolFlags: pool.Top}, Config{})
}

// assertInvariants checks all three tiers.
func assertInvariants(t testing.TB, f *fixture) {
	t.Helper()
	require.NoError(t, f.slots.Check())
	require.NoError(t, f.heap.Check())
	require.NoError(t, f.pool.Check())
}

func mustAlloc(t testing.TB, f *fixture, size int) mem.Ptr {
	t.Helper()
	p := f.slots.Alloc(size)
	require.NotEqual(t, mem.Nil, p, "Alloc(%d)", size)
	return p
}

func fill(f *fixture, p mem.Ptr, n int, seed byte) {
	b := f.heap.Bytes(p, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
}

func requirePattern(t testing.TB, f *fixture, p mem.Ptr, n int, seed byte) {
	t.Helper()
	b := f.heap.Bytes(p, n)
	for i := range b {
		if b[i] != seed+byte(i) {
			t.Fatalf("byte %d at 0x%X: got 0x%02X want 0x%02X", i, p, b[i], seed+byte(i))
		}
	}
}

type recorder struct {
	events []diag.Event
}

func (r *recorder) hook(e diag.Event) { r.events = append(r.events, e) }
