package heap

import "github.com/joshuapare/memkit/internal/format"

// Block layout (offsets from the block start, little-endian):
//
//	allocated                        free
//	0x00 u32 size | flags            0x00 u32 size | flags
//	0x04 u16 magic                   0x04 u32 next free block
//	0x06 u16 heap index              ...
//	0x08 payload                     size-8 u32 previous free block
//	                                 size-4 u32 self (block offset)
//
// Sizes are multiples of blockAlign, so the low bits of the size word carry
// the free and previous-free flags and the low bit of a free block's next
// pointer is always zero. The in-use magic is odd, so a free block can never
// look allocated.
const (
	blockHeader = 8
	blockFooter = 8
	blockAlign  = 8
	minBlock    = blockHeader + blockFooter

	blockMagic = 0xB1C5

	bitFree     = 1 << 0
	bitPrevFree = 1 << 1
	sizeMask    = ^uint32(blockAlign - 1)
)

func (a *Allocator) word(off int) int       { return int(format.ReadU32(a.mem, off)) }
func (a *Allocator) setWord(off, v int)     { format.PutU32(a.mem, off, uint32(v)) }
func (a *Allocator) bsize(b int) int        { return int(format.ReadU32(a.mem, b) & sizeMask) }
func (a *Allocator) bfree(b int) bool       { return format.ReadU32(a.mem, b)&bitFree != 0 }
func (a *Allocator) prevFree(b int) bool    { return format.ReadU32(a.mem, b)&bitPrevFree != 0 }
func (a *Allocator) bmagic(b int) uint16    { return format.ReadU16(a.mem, b+4) }
func (a *Allocator) bheap(b int) int        { return int(format.ReadU16(a.mem, b+6)) }
func (a *Allocator) nextFree(b int) int     { return a.word(b + 4) }
func (a *Allocator) prevFreeOf(b int) int   { return a.word(b + a.bsize(b) - 8) }
func (a *Allocator) footerSelf(b int) int   { return a.word(b + a.bsize(b) - 4) }
func (a *Allocator) setNextFree(b, n int)   { a.setWord(b+4, n) }
func (a *Allocator) setPrevFreeOf(b, p int) { a.setWord(b+a.bsize(b)-8, p) }

// markUsed writes an allocated header for a block of size bytes.
func (a *Allocator) markUsed(b, size int, prevFree bool, heap int) {
	w := uint32(size)
	if prevFree {
		w |= bitPrevFree
	}
	format.PutU32(a.mem, b, w)
	format.PutU16(a.mem, b+4, blockMagic)
	format.PutU16(a.mem, b+6, uint16(heap))
}

// markFree writes a free header and footer. List links are set by the caller.
func (a *Allocator) markFree(b, size int) {
	// A free block's predecessor is always allocated: neighbours coalesce.
	format.PutU32(a.mem, b, uint32(size)|bitFree)
	a.setWord(b+size-4, b)
}

// setPrevFreeBit updates the previous-free flag of block b.
func (a *Allocator) setPrevFreeBit(b int, on bool) {
	w := format.ReadU32(a.mem, b)
	if on {
		w |= bitPrevFree
	} else {
		w &^= bitPrevFree
	}
	format.PutU32(a.mem, b, w)
}

// blockSizeFor returns the block size serving a request of n payload bytes.
func blockSizeFor(n int) int {
	return max(format.AlignUp(n+blockHeader, blockAlign), minBlock)
}
