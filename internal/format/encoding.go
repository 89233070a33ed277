package format

import "encoding/binary"

// Little-endian accessors for the in-line headers memkit writes into backing
// memory. Offsets are byte offsets into the backing slice. Callers bounds-check
// before reading; an out-of-range offset panics like any slice access.

// PutU16 writes a uint16 value at off in little-endian format.
func PutU16(b []byte, off int, v uint16) {
	binary.LittleEndian.PutUint16(b[off:off+2], v)
}

// PutU32 writes a uint32 value at off in little-endian format.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+4], v)
}

// ReadU16 reads a uint16 value at off in little-endian format.
func ReadU16(b []byte, off int) uint16 {
	return binary.LittleEndian.Uint16(b[off : off+2])
}

// ReadU32 reads a uint32 value at off in little-endian format.
func ReadU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+4])
}

// Clear zeroes n bytes starting at off.
func Clear(b []byte, off, n int) {
	clear(b[off : off+n])
}
