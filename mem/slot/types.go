package slot

import (
	"fmt"

	"github.com/joshuapare/memkit/mem/diag"
)

const (
	// DefaultMin, DefaultMax and DefaultStep describe the default band:
	// 16 to 48 bytes in 4-byte steps.
	DefaultMin  = 16
	DefaultMax  = 48
	DefaultStep = 4

	// DefaultCapacity is the number of slots per array.
	DefaultCapacity = 64

	slotAlign = 4
)

// Config describes the size band served by slot arrays.
type Config struct {
	Min, Max, Step int
	// Capacity is the slot count of every array; a positive multiple of 64.
	Capacity int
	Reporter *diag.Reporter
}

func (c Config) withDefaults() Config {
	if c.Min == 0 && c.Max == 0 {
		c.Min, c.Max = DefaultMin, DefaultMax
	}
	if c.Step == 0 {
		c.Step = DefaultStep
	}
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	return c
}

func (c Config) validate() error {
	switch {
	case c.Min <= 0 || c.Max < c.Min:
		return fmt.Errorf("%w: band %d..%d", ErrBadConfig, c.Min, c.Max)
	case c.Min%slotAlign != 0 || c.Step%slotAlign != 0 || c.Step <= 0:
		return fmt.Errorf("%w: band start %d and step %d must be multiples of %d",
			ErrBadConfig, c.Min, c.Step, slotAlign)
	case (c.Max-c.Min)%c.Step != 0:
		return fmt.Errorf("%w: band %d..%d is not a whole number of %d-byte steps",
			ErrBadConfig, c.Min, c.Max, c.Step)
	case c.Capacity <= 0 || c.Capacity%64 != 0:
		return fmt.Errorf("%w: capacity %d", ErrBadConfig, c.Capacity)
	}
	return nil
}

// MinSpan returns the byte size of the smallest array.
func (c Config) MinSpan() int {
	c = c.withDefaults()
	return c.Min * c.Capacity
}

// Stats summarises the slot tier.
type Stats struct {
	Arrays         int // Live arrays
	Slots          int // Slot capacity across live arrays
	Used           int // Live slots
	Allocs         int // In-band allocations
	Frees          int // In-band releases
	PassedThrough  int // Requests forwarded to the heap tier
	ArraysCreated  int
	ArraysReleased int
	ShrinkKept     int // Shrinks that kept the original pointer
}
