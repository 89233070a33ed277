// Package slot implements the fixed-slot tier of memkit: a narrow band of
// tiny sizes (16 to 48 bytes in 4-byte steps by default) served from arrays
// of equal-size slots.
//
// Each array tracks its slots with a bitmap, one bit per slot, set while the
// slot is free, plus a cursor at the lowest free slot. Arrays of a class are
// kept in address order, and the class remembers the lowest array that still
// has space, so allocation and release are O(1) apart from the occasional
// short walk to the next array with space.
//
// Releasing a pointer consults an address-range index (package addrmap) to
// find its array; pointers not inside any array are handed to the heap tier.
// An array whose last slot is released goes back to the heap tier at once.
//
// Hook matches the common pluggable-allocator convention of a single
// allocate-or-resize-or-release function.
package slot
