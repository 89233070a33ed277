package slot

import (
	"math/bits"

	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/diag"
)

// Check verifies the slot tier: class lists in address order, bitmaps that
// agree with use counts and cursors, no empty arrays, correct
// first-with-space pointers, and an address index that finds every array.
func (a *Allocator) Check() error {
	if err := a.check(); err != nil {
		a.rep.Report(diag.Event{Kind: diag.Corruption, Tier: "slot", Op: "check", Err: err})
		return err
	}
	return nil
}

func (a *Allocator) check() error {
	listed := 0
	for c, head := range a.lists {
		var prev *array
		var want *array
		for r := head; r != nil; r = r.next {
			if r.prev != prev || r.dead || r.class != c || r.size != a.slotSize(c) {
				return diag.Corruptf("slot", r.base, "array %d misplaced on class %d list", r.id, c)
			}
			if prev != nil && prev.end(a.cfg.Capacity) > r.base {
				return diag.Corruptf("slot", r.base, "array %d out of address order", r.id)
			}
			if int(r.id) >= len(a.arrays) || a.arrays[r.id] != r {
				return diag.Corruptf("slot", r.base, "array %d not in array table", r.id)
			}
			if err := a.checkArray(r); err != nil {
				return err
			}
			if want == nil && r.used < a.cfg.Capacity {
				want = r
			}
			listed++
			prev = r
		}
		if a.firstWithSpace[c] != want {
			return diag.Corruptf("slot", -1, "first array with space for class %d is stale", c)
		}
	}
	if listed != a.Arrays() {
		return diag.Corruptf("slot", -1, "%d arrays listed, %d in table", listed, a.Arrays())
	}
	return nil
}

func (a *Allocator) checkArray(r *array) error {
	free := 0
	for _, w := range r.free {
		free += bits.OnesCount64(w)
	}
	if r.used != a.cfg.Capacity-free {
		return diag.Corruptf("slot", r.base, "array %d uses %d slots, bitmap says %d", r.id, r.used, a.cfg.Capacity-free)
	}
	if r.used == 0 {
		return diag.Corruptf("slot", r.base, "array %d is empty but still live", r.id)
	}
	if want := a.nextFree(r, 0); r.cursor != want {
		return diag.Corruptf("slot", r.base, "array %d cursor %d, lowest free slot %d", r.id, r.cursor, want)
	}
	for _, p := range []int{r.base, r.end(a.cfg.Capacity) - 1} {
		ids := a.idx.Lookup(mem.Ptr(p))
		if ids[0] != r.id && ids[1] != r.id {
			return diag.Corruptf("slot", p, "address index misses array %d", r.id)
		}
	}
	if !a.h.Owns(mem.Ptr(r.base)) && !a.h.OwnsLarge(mem.Ptr(r.base)) {
		return diag.Corruptf("slot", r.base, "array %d memory not allocated from the heap tier", r.id)
	}
	return nil
}
