package slot

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/heap"
	"github.com/joshuapare/memkit/mem/pool"
)

type liveSlot struct {
	size int
	seed byte
}

// randomSize is mostly in band, like an interpreter's allocation stream.
func randomSize(rng *rand.Rand) int {
	if rng.Intn(4) == 0 {
		return 1 + rng.Intn(600)
	}
	return DefaultMin + rng.Intn(DefaultMax-DefaultMin+1)
}

// Test_Property_HookTraffic drives random traffic through Hook and checks all
// tiers after every step.
func Test_Property_HookTraffic(t *testing.T) {
	f := newFixture(t, 1<<20, heap.Config{PoolFlags: pool.Top}, Config{})
	s := f.slots
	rng := rand.New(rand.NewSource(11)) // Fixed seed for reproducibility
	live := make(map[mem.Ptr]liveSlot)
	var order []mem.Ptr // insertion order, for deterministic picks

	pick := func() (mem.Ptr, int) {
		for len(order) > 0 {
			i := rng.Intn(len(order))
			if _, ok := live[order[i]]; ok {
				return order[i], i
			}
			order[i] = order[len(order)-1]
			order = order[:len(order)-1]
		}
		return mem.Nil, -1
	}

	for step := range 4000 {
		switch op := rng.Intn(10); {
		case op < 5:
			size := randomSize(rng)
			p := s.Hook(nil, mem.Nil, 0, size)
			require.NotEqual(t, mem.Nil, p, "step %d", step)
			require.NotContains(t, live, p, "step %d", step)
			fill(f, p, size, byte(step))
			live[p] = liveSlot{size: size, seed: byte(step)}
			order = append(order, p)

		case op < 8:
			p, _ := pick()
			if p == mem.Nil {
				continue
			}
			ls := live[p]
			requirePattern(t, f, p, ls.size, ls.seed)
			require.Equal(t, mem.Nil, s.Hook(nil, p, ls.size, 0))
			delete(live, p)

		default:
			p, _ := pick()
			if p == mem.Nil {
				continue
			}
			ls := live[p]
			size := randomSize(rng)
			q := s.Hook(nil, p, ls.size, size)
			require.NotEqual(t, mem.Nil, q, "step %d", step)
			requirePattern(t, f, q, min(ls.size, size), ls.seed)
			delete(live, p)
			fill(f, q, size, ls.seed)
			live[q] = liveSlot{size: size, seed: ls.seed}
			order = append(order, q)
		}
		assertInvariants(t, f)
	}

	for p, ls := range live {
		requirePattern(t, f, p, ls.size, ls.seed)
		s.Free(p)
	}
	require.Equal(t, 0, s.Arrays())
	require.Equal(t, 0, f.heap.Heaps())
	assertInvariants(t, f)
}
