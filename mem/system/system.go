// Package system assembles the pool, heap and slot tiers over one mapped
// backing range and exposes them as a single allocator-state object.
package system

import (
	"errors"
	"fmt"

	"github.com/joshuapare/memkit/internal/backing"
	"github.com/joshuapare/memkit/internal/format"
	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/addrmap"
	"github.com/joshuapare/memkit/mem/diag"
	"github.com/joshuapare/memkit/mem/heap"
	"github.com/joshuapare/memkit/mem/pool"
	"github.com/joshuapare/memkit/mem/slot"
	"github.com/joshuapare/memkit/mem/track"
)

// System owns the backing range and the three tiers built on it.
//
// NOT thread-safe. Only one goroutine should use it at a time.
type System struct {
	cfg    Config
	mem    []byte
	unmap  func() error
	rep    *diag.Reporter
	pool   *pool.Allocator
	heap   *heap.Allocator
	slots  *slot.Allocator
	index  *addrmap.Map
	track  *track.Tracker
	closed bool
}

// New maps the backing range and builds every tier.
func New(cfg Config) (*System, error) {
	if cfg.Granularity == 0 {
		cfg.Granularity = pool.DefaultGranularity
	}
	if len(cfg.Pools) == 0 {
		cfg.Pools = Default().Pools
	}
	if cfg.Heap.Pool < 0 || cfg.Heap.Pool >= len(cfg.Pools) {
		return nil, fmt.Errorf("%w: heap pool %d of %d", ErrConfig, cfg.Heap.Pool, len(cfg.Pools))
	}
	if cfg.LogAlloc {
		logger.AllocEnabled = true
	}

	data, unmap, err := backing.Map(cfg.BackingSize())
	if err != nil {
		return nil, err
	}
	s := &System{cfg: cfg, mem: data, unmap: unmap, rep: diag.NewReporter(cfg.Debug, cfg.Hook)}
	if err := s.build(); err != nil {
		_ = unmap()
		return nil, err
	}
	logger.Info("allocator ready", "backing", len(data), "pools", len(cfg.Pools), "debug", cfg.Debug, "track", cfg.Track)
	return s, nil
}

func (s *System) build() error {
	var err error
	s.pool, err = pool.New(s.mem, pool.Config{
		Granularity: s.cfg.Granularity,
		Sizes:       s.cfg.Pools,
		Reporter:    s.rep,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	hc, err := s.cfg.heapConfig(s.rep)
	if err != nil {
		return err
	}
	if s.heap, err = heap.New(s.pool, hc); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	sc := s.cfg.slotConfig(s.rep)
	shift := format.Log2(sc.MinSpan())
	if shift < 0 {
		return fmt.Errorf("%w: slot span %d", ErrConfig, sc.MinSpan())
	}
	s.index = addrmap.New(len(s.mem), uint(shift))
	if s.slots, err = slot.New(s.heap, s.index, sc); err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if s.cfg.Track {
		s.track = track.New()
	}
	return nil
}

// Close unmaps the backing range. Every pointer becomes invalid. Closing
// twice is a no-op.
func (s *System) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	logger.Info("allocator closed")
	return s.unmap()
}

// Pool returns the pool tier.
func (s *System) Pool() *pool.Allocator { return s.pool }

// Heap returns the segregated-fit tier.
func (s *System) Heap() *heap.Allocator { return s.heap }

// Slot returns the fixed-slot tier.
func (s *System) Slot() *slot.Allocator { return s.slots }

// Reporter returns the diagnostics reporter shared by all tiers.
func (s *System) Reporter() *diag.Reporter { return s.rep }

// Config returns the effective configuration.
func (s *System) Config() Config { return s.cfg }

// Bytes returns the n bytes at p.
func (s *System) Bytes(p mem.Ptr, n int) []byte { return s.pool.Bytes(p, n) }

// Persistent allocates a long-lived block from the bottom of pool 0.
func (s *System) Persistent(size, align int) mem.Ptr {
	p, err := s.pool.Allocate(size, align, pool.Bottom)
	if err != nil {
		return mem.Nil
	}
	s.track.Record(p, size, mem.CategoryPersistent, track.Caller(1))
	return p
}

// ReleasePersistent frees a block from Persistent.
func (s *System) ReleasePersistent(p mem.Ptr) error {
	s.track.Forget(p)
	return s.pool.Release(p)
}

// ResizePersistent resizes a block from Persistent.
func (s *System) ResizePersistent(p mem.Ptr, size int) mem.Ptr {
	q, err := s.pool.Resize(p, size)
	if err != nil {
		return mem.Nil
	}
	if size <= 0 {
		s.track.Forget(p)
	} else {
		s.track.Move(p, q, size, mem.CategoryPersistent, track.Caller(1))
	}
	return q
}

// Malloc allocates from the heap tier.
func (s *System) Malloc(size int) mem.Ptr {
	p := s.heap.Malloc(size)
	s.track.Record(p, size, mem.CategoryRuntime, track.Caller(1))
	return p
}

// Calloc allocates count*size zeroed bytes from the heap tier.
func (s *System) Calloc(count, size int) mem.Ptr {
	p := s.heap.Calloc(count, size)
	s.track.Record(p, count*size, mem.CategoryRuntime, track.Caller(1))
	return p
}

// Realloc resizes a heap-tier pointer.
func (s *System) Realloc(p mem.Ptr, size int) mem.Ptr {
	q := s.heap.Realloc(p, size)
	if size <= 0 {
		s.track.Forget(p)
	} else if q != mem.Nil {
		s.track.Move(p, q, size, mem.CategoryRuntime, track.Caller(1))
	}
	return q
}

// Free releases a heap-tier pointer.
func (s *System) Free(p mem.Ptr) {
	s.track.Forget(p)
	s.heap.Free(p)
}

// ScriptHook is the interpreter's pluggable allocator: newSize 0 releases,
// a nil p allocates, anything else resizes.
func (s *System) ScriptHook(ud any, p mem.Ptr, oldSize, newSize int) mem.Ptr {
	q := s.slots.Hook(ud, p, oldSize, newSize)
	switch {
	case newSize == 0:
		s.track.Forget(p)
	case q != mem.Nil:
		s.track.Move(p, q, newSize, mem.CategoryScript, track.Caller(1))
	}
	return q
}

// Check runs every tier's consistency walk and joins the failures.
func (s *System) Check() error {
	return errors.Join(s.pool.Check(), s.heap.Check(), s.slots.Check())
}

// Report returns the tracker's live-allocation report; empty when tracking
// is off.
func (s *System) Report() track.Report { return s.track.Report() }
