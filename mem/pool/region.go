package pool

import "github.com/joshuapare/memkit/internal/format"

// Region header layout (offsets from the region start, little-endian):
//
//	0x00  u16  magic
//	0x02  u8   flags (free, top)
//	0x03  u8   pool id
//	0x04  u32  size in blocks (0 for the fence)
//	0x08  u32  previous region offset (0 for the first region)
//	0x0C  u32  next region offset (0 for the fence)
//	0x10  u32  requested size            | free-list next (free regions)
//	0x14  u32  requested alignment       | free-list prev (free regions)
//	0x18  u32  owner tag
//	0x1C  u32  link (region offset) when the payload starts right after the header
//
// The word immediately before every payload holds the owning region offset,
// so Release can find the header whatever padding the alignment added.
const (
	offMagic   = 0x00
	offFlags   = 0x02
	offPool    = 0x03
	offBlocks  = 0x04
	offPrev    = 0x08
	offNext    = 0x0C
	offReqSize = 0x10
	offAlign   = 0x14
	offFreeNxt = 0x10
	offFreePrv = 0x14
	offTag     = 0x18

	regionMagic = 0x5247 // "RG"

	flagFree = 1 << 0
	flagTop  = 1 << 1
)

func (a *Allocator) u32(off int) int      { return int(format.ReadU32(a.mem, off)) }
func (a *Allocator) put32(off, v int)     { format.PutU32(a.mem, off, uint32(v)) }
func (a *Allocator) magic(r int) uint16   { return format.ReadU16(a.mem, r+offMagic) }
func (a *Allocator) flags(r int) byte     { return a.mem[r+offFlags] }
func (a *Allocator) poolOf(r int) int     { return int(a.mem[r+offPool]) }
func (a *Allocator) isFree(r int) bool    { return a.flags(r)&flagFree != 0 }
func (a *Allocator) isTop(r int) bool     { return a.flags(r)&flagTop != 0 }
func (a *Allocator) blocks(r int) int     { return a.u32(r + offBlocks) }
func (a *Allocator) prevOf(r int) int     { return a.u32(r + offPrev) }
func (a *Allocator) nextOf(r int) int     { return a.u32(r + offNext) }
func (a *Allocator) freeNext(r int) int   { return a.u32(r + offFreeNxt) }
func (a *Allocator) freePrev(r int) int   { return a.u32(r + offFreePrv) }
func (a *Allocator) reqSize(r int) int    { return a.u32(r + offReqSize) }
func (a *Allocator) reqAlign(r int) int   { return a.u32(r + offAlign) }
func (a *Allocator) setBlocks(r, n int)   { a.put32(r+offBlocks, n) }
func (a *Allocator) setPrev(r, p int)     { a.put32(r+offPrev, p) }
func (a *Allocator) setNext(r, n int)     { a.put32(r+offNext, n) }
func (a *Allocator) setFreeNext(r, n int) { a.put32(r+offFreeNxt, n) }
func (a *Allocator) setFreePrev(r, p int) { a.put32(r+offFreePrv, p) }

// writeHeader initialises a region header. The free-list / request words and
// the tag are cleared.
func (a *Allocator) writeHeader(r, pool, blocks, prev, next int, flags byte) {
	format.PutU16(a.mem, r+offMagic, regionMagic)
	a.mem[r+offFlags] = flags
	a.mem[r+offPool] = byte(pool)
	a.setBlocks(r, blocks)
	a.setPrev(r, prev)
	a.setNext(r, next)
	a.put32(r+offReqSize, 0)
	a.put32(r+offAlign, 0)
	a.put32(r+offTag, 0)
}

func (a *Allocator) setFlags(r int, f byte) { a.mem[r+offFlags] = f }

// span returns the byte length of region r.
func (a *Allocator) span(r int) int { return a.blocks(r) * a.gran }

// payloadOffset is the distance from a region start to its payload.
func payloadOffset(align int) int { return format.AlignUp(HeaderSize, align) }

// blocksFor returns the whole blocks a request of size bytes needs.
func (a *Allocator) blocksFor(size, align int) int {
	return (payloadOffset(align) + size + a.gran - 1) / a.gran
}

// link splices region r between prev and next in the region chain.
func (a *Allocator) link(r, prev, next int) {
	a.setPrev(r, prev)
	a.setNext(r, next)
	if next != 0 {
		a.setPrev(next, r)
	}
	if prev != 0 {
		a.setNext(prev, r)
	}
}
