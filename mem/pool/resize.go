package pool

import (
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/diag"
)

// Resize changes the payload behind ptr to newSize bytes, preserving
// min(old, new) bytes.
//
// Shrinking always happens in place. Growing first absorbs a free following
// region, then slides down into a free preceding region, and only then falls
// back to allocate+copy+release: first in the original pool and direction,
// then in any other pool. On failure the original allocation is untouched.
//
// A nil ptr allocates from pool 0 bottom-up; newSize 0 releases ptr.
func (a *Allocator) Resize(ptr mem.Ptr, newSize int) (mem.Ptr, error) {
	if ptr == mem.Nil {
		return a.Allocate(newSize, 0, Bottom)
	}
	if newSize <= 0 {
		return mem.Nil, a.Release(ptr)
	}
	p, r, err := a.locate(ptr)
	if err != nil {
		a.invalid("realloc", ptr, newSize, err)
		return mem.Nil, err
	}

	oldSize := a.reqSize(r)
	if newSize == oldSize {
		return ptr, nil
	}
	align := a.reqAlign(r)
	need := a.blocksFor(newSize, align)
	have := a.blocks(r)

	if need <= have {
		a.shrink(p, r, need)
		a.put32(r+offReqSize, newSize)
		if newSize < oldSize {
			a.counters.Shrinks++
		} else {
			a.counters.GrowInBlock++
		}
		a.counters.Resizes++
		return ptr, nil
	}

	next := a.nextOf(r)
	nextFree := a.isFree(next)
	if nextFree && have+a.blocks(next) >= need {
		a.absorbNext(p, r, next, need)
		a.put32(r+offReqSize, newSize)
		a.counters.GrowInPlace++
		a.counters.Resizes++
		logger.Alloc("pool grow in place", "ptr", uint32(ptr), "from", oldSize, "to", newSize)
		return ptr, nil
	}

	prev := a.prevOf(r)
	if prev != 0 && a.isFree(prev) {
		avail := a.blocks(prev) + have
		if nextFree {
			avail += a.blocks(next)
		}
		if avail >= need {
			a.counters.GrowBackward++
			a.counters.Resizes++
			return mem.Ptr(a.slideDown(p, r, prev, need, oldSize, newSize)), nil
		}
	}

	return a.move(ptr, r, oldSize, newSize, align)
}

// shrink returns the blocks of r beyond need to the free list.
func (a *Allocator) shrink(p *Pool, r, need int) {
	have := a.blocks(r)
	if have == need {
		return
	}
	t := r + need*a.gran
	next := a.nextOf(r)
	a.writeHeader(t, p.ID, have-need, r, next, 0)
	a.link(t, r, next)
	a.setBlocks(r, need)
	a.counters.Splits++
	a.freeRegion(p, t)
}

// absorbNext grows r to need blocks using the free region that follows it.
func (a *Allocator) absorbNext(p *Pool, r, next, need int) {
	take := need - a.blocks(r)
	rest := a.blocks(next) - take
	nn := a.nextOf(next)
	if rest == 0 {
		a.unlinkFree(p, next)
		a.setNext(r, nn)
		a.setPrev(nn, r)
	} else {
		t := r + need*a.gran
		// Copy the free-list words before t's header overwrites next's.
		fn, fp := a.freeNext(next), a.freePrev(next)
		a.writeHeader(t, p.ID, rest, r, nn, flagFree)
		a.setFreeNext(t, fn)
		a.setFreePrev(t, fp)
		a.relinkFree(p, t, fn, fp)
		a.link(t, r, nn)
	}
	a.setBlocks(r, need)
}

// relinkFree points the neighbours fn/fp (and the pool ends) at r.
func (a *Allocator) relinkFree(p *Pool, r, fn, fp int) {
	if fp != 0 {
		a.setFreeNext(fp, r)
	} else {
		p.low = r
	}
	if fn != 0 {
		a.setFreePrev(fn, r)
	} else {
		p.high = r
	}
}

// slideDown merges r (and a free following region) into the free region prev,
// moves the payload down and returns the new payload offset. Blocks beyond
// need are released.
func (a *Allocator) slideDown(p *Pool, r, prev, need, oldSize, newSize int) int {
	align := a.reqAlign(r)
	flags := a.flags(r)
	tag := a.u32(r + offTag)
	src := r + payloadOffset(align)

	total := a.blocks(prev) + a.blocks(r)
	after := a.nextOf(r)
	if a.isFree(after) {
		a.unlinkFree(p, after)
		total += a.blocks(after)
		after = a.nextOf(after)
	}
	a.unlinkFree(p, prev)
	a.setBlocks(prev, total)
	a.setNext(prev, after)
	a.setPrev(after, prev)

	dst := prev + payloadOffset(align)
	copy(a.mem[dst:dst+oldSize], a.mem[src:src+oldSize])

	a.setFlags(prev, flags)
	a.put32(prev+offReqSize, newSize)
	a.put32(prev+offAlign, align)
	a.put32(prev+offTag, tag)
	a.put32(dst-4, prev)
	a.shrink(p, prev, need)
	logger.Alloc("pool grow backward", "from", src, "to", dst, "size", newSize)
	return dst
}

// move reallocates elsewhere, copies and releases the original.
func (a *Allocator) move(ptr mem.Ptr, r, oldSize, newSize, align int) (mem.Ptr, error) {
	home := a.poolOf(r)
	dir := Bottom
	if a.isTop(r) {
		dir = Top
	}
	rep := a.rep
	a.rep = nil // only the final outcome is a diagnostic
	q, err := a.Allocate(newSize, align, PoolID(home)|dir)
	for id := 0; err != nil && id < len(a.pools); id++ {
		if id != home {
			q, err = a.Allocate(newSize, align, PoolID(id)|dir)
		}
	}
	a.rep = rep
	if err != nil {
		a.rep.Report(diag.Event{Kind: diag.OutOfMemory, Tier: "pool", Op: "realloc", Ptr: uint32(ptr), Size: newSize, Err: err})
		return mem.Nil, err
	}
	tag := a.u32(r + offTag)
	copy(a.mem[int(q):int(q)+min(oldSize, newSize)], a.mem[int(ptr):])
	_, qr, _ := a.locate(q)
	a.put32(qr+offTag, tag)
	a.counters.Moves++
	a.counters.Resizes++
	return q, a.Release(ptr)
}
