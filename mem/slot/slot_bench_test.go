package slot

import (
	"testing"

	"github.com/joshuapare/memkit/mem"
)

// Benchmark_Slot_AllocFree measures the in-band fast path.
func Benchmark_Slot_AllocFree(b *testing.B) {
	f := newDefaultFixture(b)
	s := f.slots
	keep := s.Alloc(24) // keeps the array alive between iterations

	b.ResetTimer()
	b.ReportAllocs()

	for range b.N {
		p := s.Alloc(24)
		if p == mem.Nil {
			b.Fatal("out of memory")
		}
		s.Free(p)
	}
	s.Free(keep)
}

// Benchmark_Slot_Hook mixes in-band and pass-through sizes through Hook.
func Benchmark_Slot_Hook(b *testing.B) {
	f := newDefaultFixture(b)
	s := f.slots
	sizes := []int{16, 20, 33, 48, 64, 17, 200, 40}
	live := make([]mem.Ptr, len(sizes))

	b.ResetTimer()
	b.ReportAllocs()

	for i := range b.N {
		j := i % len(sizes)
		if live[j] != mem.Nil {
			s.Hook(nil, live[j], sizes[j], 0)
		}
		live[j] = s.Hook(nil, mem.Nil, 0, sizes[j])
	}
}
