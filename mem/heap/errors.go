package heap

import "errors"

var (
	// ErrNoSpace indicates that neither an existing heap nor a newly carved
	// heap (down to the floor size) could satisfy the request.
	ErrNoSpace = errors.New("heap: out of memory")

	// ErrZeroSize indicates a zero or negative allocation size.
	ErrZeroSize = errors.New("heap: size must be positive")

	// ErrOverflow indicates count*size overflowed in Calloc.
	ErrOverflow = errors.New("heap: allocation size overflows")

	// ErrBadPtr indicates a pointer that is neither a live heap block nor a
	// live large allocation.
	ErrBadPtr = errors.New("heap: pointer not owned by this allocator")

	// ErrBadConfig indicates an unusable Config.
	ErrBadConfig = errors.New("heap: invalid configuration")
)
