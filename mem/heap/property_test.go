package heap

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/pool"
)

type liveBlock struct {
	size int
	seed byte
}

// randomSize favours small requests with the occasional large one.
func randomSize(rng *rand.Rand) int {
	switch n := rng.Intn(20); {
	case n == 0:
		return DefaultLargeCutoff + rng.Intn(4000)
	case n < 5:
		return 256 + rng.Intn(1500)
	default:
		return 1 + rng.Intn(200)
	}
}

func pick(rng *rand.Rand, live map[mem.Ptr]liveBlock) (mem.Ptr, bool) {
	if len(live) == 0 {
		return mem.Nil, false
	}
	n := rng.Intn(len(live))
	for p := range live {
		if n == 0 {
			return p, true
		}
		n--
	}
	return mem.Nil, false
}

// Test_Property_RandomOpsKeepInvariants drives random malloc/free/realloc
// traffic and checks both tiers after every step.
func Test_Property_RandomOpsKeepInvariants(t *testing.T) {
	a, _ := newTestHeap(t, 4<<20, Config{HeapSize: 8192, MinHeapSize: 1024, PoolFlags: pool.Top})
	rng := rand.New(rand.NewSource(7)) // Fixed seed for reproducibility
	live := make(map[mem.Ptr]liveBlock)

	for step := range 3000 {
		switch op := rng.Intn(10); {
		case op < 5:
			size := randomSize(rng)
			p := a.Malloc(size)
			require.NotEqual(t, mem.Nil, p, "step %d", step)
			require.Zero(t, int(p)%blockAlign)
			require.NotContains(t, live, p, "step %d: pointer handed out twice", step)
			seed := byte(step)
			fill(a, p, size, seed)
			live[p] = liveBlock{size: size, seed: seed}

		case op < 8:
			p, ok := pick(rng, live)
			if !ok {
				continue
			}
			lb := live[p]
			requirePattern(t, a, p, lb.size, lb.seed)
			require.NoError(t, a.Release(p), "step %d", step)
			delete(live, p)

		default:
			p, ok := pick(rng, live)
			if !ok {
				continue
			}
			lb := live[p]
			size := randomSize(rng)
			q := a.Realloc(p, size)
			require.NotEqual(t, mem.Nil, q, "step %d", step)
			requirePattern(t, a, q, min(lb.size, size), lb.seed)
			delete(live, p)
			fill(a, q, size, lb.seed)
			live[q] = liveBlock{size: size, seed: lb.seed}
		}
		assertInvariants(t, a)
	}

	for p, lb := range live {
		requirePattern(t, a, p, lb.size, lb.seed)
		require.NoError(t, a.Release(p))
	}
	st := a.Stats()
	require.Zero(t, st.Heaps)
	require.Zero(t, st.LargeAllocs)
	assertInvariants(t, a)
}

// TestRoundTrip_ReturnsEverythingToPool allocates a burst, frees it in random
// order and expects the pool back in its initial state.
func TestRoundTrip_ReturnsEverythingToPool(t *testing.T) {
	a, pa := newTestHeap(t, 1<<20, Config{})
	before, err := pa.Stats(0)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(99))
	ptrs := make([]mem.Ptr, 0, 500)
	for range 500 {
		ptrs = append(ptrs, mustMalloc(t, a, randomSize(rng)))
	}
	assertInvariants(t, a)
	rng.Shuffle(len(ptrs), func(i, j int) { ptrs[i], ptrs[j] = ptrs[j], ptrs[i] })
	for _, p := range ptrs {
		require.NoError(t, a.Release(p))
	}

	after, err := pa.Stats(0)
	require.NoError(t, err)
	require.Equal(t, before, after)
	require.Equal(t, 0, a.Heaps())
	assertInvariants(t, a)
}
