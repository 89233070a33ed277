package heap

import (
	"math/rand"
	"testing"

	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/pool"
)

// Benchmark_Heap_AllocFree_SteadyState measures alloc/free pairs against a
// warm working set.
func Benchmark_Heap_AllocFree_SteadyState(b *testing.B) {
	a, _ := newTestHeap(b, 8<<20, Config{PoolFlags: pool.Top})
	rng := rand.New(rand.NewSource(1))
	ring := make([]mem.Ptr, 1024)
	for i := range ring {
		ring[i] = a.Malloc(16 + rng.Intn(480))
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := range b.N {
		j := i % len(ring)
		a.Free(ring[j])
		ring[j] = a.Malloc(16 + (i*37)%480)
		if ring[j] == mem.Nil {
			b.Fatal("out of memory")
		}
	}
}

// Benchmark_Heap_Coalesce frees runs of neighbours so every release merges.
func Benchmark_Heap_Coalesce(b *testing.B) {
	a, _ := newTestHeap(b, 8<<20, Config{PoolFlags: pool.Top})
	ptrs := make([]mem.Ptr, 64)

	b.ResetTimer()
	b.ReportAllocs()

	for range b.N {
		for i := range ptrs {
			ptrs[i] = a.Malloc(100)
		}
		for i := 0; i < len(ptrs); i += 2 {
			a.Free(ptrs[i])
		}
		for i := 1; i < len(ptrs); i += 2 {
			a.Free(ptrs[i])
		}
	}
}
