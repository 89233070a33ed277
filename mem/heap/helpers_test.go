package heap

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/diag"
	"github.com/joshuapare/memkit/mem/pool"
)

const testGran = 64

// newTestHeap builds a heap tier over a single pool of poolSize bytes.
func newTestHeap(t testing.TB, poolSize int, cfg Config) (*Allocator, *pool.Allocator) {
	t.Helper()
	pa, err := pool.New(make([]byte, testGran+poolSize), pool.Config{
		Granularity: testGran,
		Sizes:       []int{poolSize},
		Reporter:    cfg.Reporter,
	})
	require.NoError(t, err)
	a, err := New(pa, cfg)
	require.NoError(t, err)
	return a, pa
}

// recorder collects diagnostic events.
type recorder struct {
	events []diag.Event
}

func (r *recorder) hook(e diag.Event) { r.events = append(r.events, e) }

func (r *recorder) kinds() []diag.Kind {
	out := make([]diag.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

// assertInvariants checks both tiers.
func assertInvariants(t testing.TB, a *Allocator) {
	t.Helper()
	require.NoError(t, a.Check())
	require.NoError(t, a.pa.Check())
}

func mustMalloc(t testing.TB, a *Allocator, size int) mem.Ptr {
	t.Helper()
	p, err := a.Alloc(size)
	require.NoError(t, err, "Alloc(%d)", size)
	require.NotEqual(t, mem.Nil, p)
	return p
}

func fill(a *Allocator, p mem.Ptr, n int, seed byte) {
	b := a.Bytes(p, n)
	for i := range b {
		b[i] = seed + byte(i)
	}
}

func requirePattern(t testing.TB, a *Allocator, p mem.Ptr, n int, seed byte) {
	t.Helper()
	b := a.Bytes(p, n)
	require.Len(t, b, n)
	for i := range b {
		if b[i] != seed+byte(i) {
			t.Fatalf("byte %d at 0x%X: got 0x%02X want 0x%02X", i, p, b[i], seed+byte(i))
		}
	}
}
