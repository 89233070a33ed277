package pool

import (
	"github.com/joshuapare/memkit/mem"
)

// Stats walks pool id's region chain and returns a capacity snapshot.
func (a *Allocator) Stats(id int) (Stats, error) {
	p, err := a.pool(id)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Total: p.Size}
	for r := p.Base; r != p.fence; r = a.nextOf(r) {
		if !a.isFree(r) {
			st.UsedRegions++
			continue
		}
		st.FreeRegions++
		span := a.span(r)
		st.Free += span
		st.LargestFree = max(st.LargestFree, span-HeaderSize)
	}
	return st, nil
}

// Counters returns cumulative operation counts.
func (a *Allocator) Counters() Counters { return a.counters }

// Owns reports whether ptr is the payload of a live region.
func (a *Allocator) Owns(ptr mem.Ptr) bool {
	_, _, err := a.locate(ptr)
	return err == nil
}

// Size returns the size originally requested for ptr (updated by Resize).
func (a *Allocator) Size(ptr mem.Ptr) (int, error) {
	_, r, err := a.locate(ptr)
	if err != nil {
		return 0, err
	}
	return a.reqSize(r), nil
}

// UsableSize returns the payload bytes available behind ptr, which may exceed
// the requested size by up to one block.
func (a *Allocator) UsableSize(ptr mem.Ptr) (int, error) {
	_, r, err := a.locate(ptr)
	if err != nil {
		return 0, err
	}
	return a.span(r) - payloadOffset(a.reqAlign(r)), nil
}

// SetTag stores an owner tag in ptr's region header. Upper tiers use it to
// mark regions they subdivide.
func (a *Allocator) SetTag(ptr mem.Ptr, tag uint32) error {
	_, r, err := a.locate(ptr)
	if err != nil {
		return err
	}
	a.put32(r+offTag, int(tag))
	return nil
}

// Tag returns the owner tag of ptr's region.
func (a *Allocator) Tag(ptr mem.Ptr) (uint32, error) {
	_, r, err := a.locate(ptr)
	if err != nil {
		return 0, err
	}
	return uint32(a.u32(r + offTag)), nil
}

// Bytes returns the n bytes at ptr. The slice aliases backing memory and is
// capacity-limited to n.
func (a *Allocator) Bytes(ptr mem.Ptr, n int) []byte {
	off := int(ptr)
	return a.mem[off : off+n : off+n]
}

// Mem returns the whole backing range. Upper tiers lay their own headers
// into the regions they own through it.
func (a *Allocator) Mem() []byte { return a.mem }

// Granularity returns the block size in bytes.
func (a *Allocator) Granularity() int { return a.gran }

// NumPools returns how many pools are configured.
func (a *Allocator) NumPools() int { return len(a.pools) }

// Range returns the base offset and size of pool id.
func (a *Allocator) Range(id int) (base, size int, err error) {
	p, err := a.pool(id)
	if err != nil {
		return 0, 0, err
	}
	return p.Base, p.Size, nil
}
