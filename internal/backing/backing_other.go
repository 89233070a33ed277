//go:build !unix

// Package backing provides the fixed memory range the allocator tiers carve up.
package backing

import "fmt"

// Map allocates size zeroed bytes from the Go heap when mmap is not available.
// The slice is never resliced or appended to, so it does not move.
func Map(size int) ([]byte, func() error, error) {
	if size <= 0 {
		return nil, nil, fmt.Errorf("backing: invalid size %d", size)
	}
	return make([]byte, size), func() error { return nil }, nil
}
