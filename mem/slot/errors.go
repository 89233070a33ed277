package slot

import "errors"

var (
	// ErrBadConfig indicates an unusable Config, or an address index whose
	// buckets are larger than the smallest array.
	ErrBadConfig = errors.New("slot: invalid configuration")

	// ErrBadPtr indicates a pointer inside an array that is not a live slot.
	ErrBadPtr = errors.New("slot: pointer is not a live slot")

	// ErrNoSpace indicates the heap tier could not supply a new array.
	ErrNoSpace = errors.New("slot: out of memory")
)
