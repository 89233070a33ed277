// Package mem defines the pointer and category types shared by the memkit
// allocator tiers.
//
// # Overview
//
// memkit manages one fixed, non-relocatable range of memory mapped at start-up.
// Three allocators share it, leaves first:
//
//   - pool: coarse, arbitrary-size, arbitrary-alignment regions allocated
//     bottom-up or top-down from one or two pools
//   - heap: size-segregated free lists with boundary-tag coalescing inside
//     heaps carved from the pool tier; large requests go to the pool directly
//   - slot: bitmap slot arrays for a narrow band of tiny sizes, backed by the
//     heap tier
//
// The system package wires the three together from a single Config.
//
// # Pointers
//
// A Ptr is a byte offset into the backing range. Nil (0) is never a valid
// allocation. Payload bytes are reached through the owning tier's Bytes method:
//
//	p := h.Malloc(24)
//	copy(pa.Bytes(p, 24), payload)
//
// # Threading
//
// None of the tiers lock. Confine every call to one goroutine or serialise
// access externally.
package mem
