package heap

import (
	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/diag"
)

// Check verifies every live heap:
//
//   - heaps are linked in strictly increasing address order and carry the
//     heap tag in their pool region
//   - blocks tile each heap exactly up to the end marker
//   - prev-free bits match the preceding block and no two free blocks touch
//   - free footers point back at their block
//   - each class list holds exactly the heap's free blocks of that class,
//     with consistent back links
//   - firstHeap[c] is the lowest-address heap with a class-c free block
//
// The first violation is returned as a *diag.CorruptionError and reported.
func (a *Allocator) Check() error {
	if err := a.check(); err != nil {
		a.rep.Report(diag.Event{Kind: diag.Corruption, Tier: "heap", Op: "check", Err: err})
		return err
	}
	return nil
}

func (a *Allocator) check() error {
	live := 0
	var prev *Heap
	for h := a.first; h != nil; h = h.next {
		if h.prev != prev {
			return diag.Corruptf("heap", h.base, "heap %d back link broken", h.index)
		}
		if prev != nil && prev.base >= h.base {
			return diag.Corruptf("heap", h.base, "heap %d out of address order", h.index)
		}
		if h.dead || h.index >= len(a.heaps) || a.heaps[h.index] != h {
			return diag.Corruptf("heap", h.base, "heap %d not in heap table", h.index)
		}
		if tag, err := a.pa.Tag(mem.Ptr(h.base)); err != nil || tag != heapTag|uint32(h.index) {
			return diag.Corruptf("heap", h.base, "heap %d pool tag 0x%08X", h.index, tag)
		}
		if h.used == 0 {
			return diag.Corruptf("heap", h.base, "heap %d is empty but still live", h.index)
		}
		if err := a.checkHeap(h); err != nil {
			return err
		}
		live++
		prev = h
	}
	for _, h := range a.heaps {
		if h != nil {
			live--
		}
	}
	if live != 0 {
		return diag.Corruptf("heap", -1, "heap table and heap chain disagree")
	}

	for c, f := range a.firstHeap {
		var want *Heap
		for h := a.first; h != nil; h = h.next {
			if h.heads[c] != 0 {
				want = h
				break
			}
		}
		if f != want {
			return diag.Corruptf("heap", -1, "firstHeap for class %d is stale", c)
		}
	}
	return nil
}

func (a *Allocator) checkHeap(h *Heap) error {
	end := h.base + h.size - blockHeader
	freeSet := map[int]bool{}
	free, used := 0, 0
	wasFree := false
	b := h.base
	for b != end {
		if b > end {
			return diag.Corruptf("heap", b, "block chain overruns end marker")
		}
		size := a.bsize(b)
		if size < minBlock {
			return diag.Corruptf("heap", b, "block size %d", size)
		}
		if a.prevFree(b) != wasFree {
			return diag.Corruptf("heap", b, "prev-free bit %v, want %v", a.prevFree(b), wasFree)
		}
		isFree := a.bfree(b)
		if isFree {
			if wasFree {
				return diag.Corruptf("heap", b, "adjacent free blocks not coalesced")
			}
			if a.footerSelf(b) != b {
				return diag.Corruptf("heap", b+size-4, "footer self 0x%X", a.footerSelf(b))
			}
			freeSet[b] = true
			free += size
		} else {
			if a.bmagic(b) != blockMagic || a.bheap(b) != h.index {
				return diag.Corruptf("heap", b, "bad block header magic 0x%04X heap %d", a.bmagic(b), a.bheap(b))
			}
			used++
		}
		wasFree = isFree
		b += size
	}
	if a.bsize(end) != 0 || a.bfree(end) || a.bmagic(end) != blockMagic || a.prevFree(end) != wasFree {
		return diag.Corruptf("heap", end, "bad end marker")
	}
	if free != h.free || len(freeSet) != h.freeBlocks || used != h.used {
		return diag.Corruptf("heap", h.base, "heap %d accounting: free %d/%d blocks %d/%d used %d/%d",
			h.index, free, h.free, len(freeSet), h.freeBlocks, used, h.used)
	}

	for c, head := range h.heads {
		pv := 0
		for f := head; f != 0; f = a.nextFree(f) {
			if !freeSet[f] {
				return diag.Corruptf("heap", f, "class %d list holds a non-free block", c)
			}
			if got := a.classes.classOf(a.bsize(f)); got != c {
				return diag.Corruptf("heap", f, "block of class %d on class %d list", got, c)
			}
			if a.prevFreeOf(f) != pv {
				return diag.Corruptf("heap", f, "free list back link 0x%X, want 0x%X", a.prevFreeOf(f), pv)
			}
			delete(freeSet, f)
			pv = f
		}
	}
	if len(freeSet) != 0 {
		return diag.Corruptf("heap", h.base, "heap %d has %d unlisted free blocks", h.index, len(freeSet))
	}
	return nil
}
