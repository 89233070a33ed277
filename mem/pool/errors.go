package pool

import "errors"

var (
	// ErrNoSpace indicates that no free region large enough was found in the
	// requested pool and direction.
	ErrNoSpace = errors.New("pool: no free region large enough")

	// ErrZeroSize indicates a zero or negative allocation size.
	ErrZeroSize = errors.New("pool: size must be positive")

	// ErrBadAlign indicates an alignment that is not a power of two or exceeds
	// the block granularity.
	ErrBadAlign = errors.New("pool: alignment must be a power of two no larger than the granularity")

	// ErrBadPool indicates a pool id that was not configured.
	ErrBadPool = errors.New("pool: unknown pool id")

	// ErrBadPtr indicates a pointer that does not address a live region payload.
	ErrBadPtr = errors.New("pool: pointer not owned by an allocated region")

	// ErrBadConfig indicates an unusable Config.
	ErrBadConfig = errors.New("pool: invalid configuration")
)
