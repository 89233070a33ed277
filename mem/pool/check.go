package pool

import (
	"github.com/joshuapare/memkit/mem/diag"
)

// Check walks every pool and verifies the region invariants:
//
//   - regions tile the pool with no gaps or overlaps and end at the fence
//   - prev/next links agree with each other and with region sizes
//   - no two adjacent regions are both free
//   - the free list is exactly the free regions, in address order, and the
//     low/high pointers name its ends
//   - every allocated region's link word points back at its header
//
// The first violation is returned as a *diag.CorruptionError and reported to
// the configured diag.Reporter.
func (a *Allocator) Check() error {
	for _, p := range a.pools {
		if err := a.checkPool(p); err != nil {
			a.rep.Report(diag.Event{Kind: diag.Corruption, Tier: "pool", Op: "check", Err: err})
			return err
		}
	}
	return nil
}

func (a *Allocator) checkPool(p *Pool) error {
	var frees []int
	prev, prevFree := 0, false
	r := p.Base
	for steps := 0; r != p.fence; steps++ {
		if r < p.Base || r >= p.fence || steps > p.Size/a.gran {
			return diag.Corruptf("pool", r, "region chain escapes pool %d", p.ID)
		}
		if a.magic(r) != regionMagic {
			return diag.Corruptf("pool", r, "bad magic 0x%04X", a.magic(r))
		}
		if a.poolOf(r) != p.ID {
			return diag.Corruptf("pool", r, "owned by pool %d, found in pool %d", a.poolOf(r), p.ID)
		}
		if a.prevOf(r) != prev {
			return diag.Corruptf("pool", r, "prev link 0x%X, want 0x%X", a.prevOf(r), prev)
		}
		n := a.blocks(r)
		if n == 0 || a.nextOf(r) != r+n*a.gran {
			return diag.Corruptf("pool", r, "next link 0x%X does not match %d blocks", a.nextOf(r), n)
		}
		free := a.isFree(r)
		if free && prevFree {
			return diag.Corruptf("pool", r, "adjacent free regions not coalesced")
		}
		if free {
			frees = append(frees, r)
		} else {
			payload := r + payloadOffset(a.reqAlign(r))
			if a.u32(payload-4) != r {
				return diag.Corruptf("pool", payload-4, "link word 0x%X, want 0x%X", a.u32(payload-4), r)
			}
			if payload+a.reqSize(r) > a.nextOf(r) {
				return diag.Corruptf("pool", r, "payload of %d bytes overruns region", a.reqSize(r))
			}
		}
		prev, prevFree = r, free
		r = a.nextOf(r)
	}

	if a.magic(r) != regionMagic || a.blocks(r) != 0 || a.isFree(r) || a.prevOf(r) != prev {
		return diag.Corruptf("pool", r, "bad fence for pool %d", p.ID)
	}
	if r != p.Base+p.Size-a.gran {
		return diag.Corruptf("pool", r, "fence not in last block")
	}

	i, fp := 0, 0
	for f := p.low; f != 0; f = a.freeNext(f) {
		if i >= len(frees) || frees[i] != f {
			return diag.Corruptf("pool", f, "free list diverges from region chain at entry %d", i)
		}
		if a.freePrev(f) != fp {
			return diag.Corruptf("pool", f, "free-list prev 0x%X, want 0x%X", a.freePrev(f), fp)
		}
		fp = f
		i++
	}
	if i != len(frees) {
		return diag.Corruptf("pool", -1, "free list holds %d of %d free regions", i, len(frees))
	}
	if p.high != fp {
		return diag.Corruptf("pool", p.high, "high free pointer, want 0x%X", fp)
	}
	return nil
}
