package mem

// Ptr addresses a byte inside the backing range. It is an offset, not a Go
// pointer: it stays valid for the life of the backing range and means nothing
// without the allocator that handed it out.
type Ptr uint32

// Nil is the null pointer. The first granule of every backing range is
// reserved, so no allocation ever starts at offset zero.
const Nil Ptr = 0

// Add returns p advanced by n bytes.
func (p Ptr) Add(n int) Ptr { return p + Ptr(n) }

// Category is a coarse usage bucket for debug reports.
type Category uint8

const (
	CategoryUnknown    Category = iota
	CategoryPersistent          // long-lived resources served by the pool tier
	CategoryRuntime             // host runtime / standard-library traffic (heap tier)
	CategoryScript              // embedded interpreter traffic (slot tier)
	CategoryInternal            // allocator metadata (heaps, slot arrays)
)

func (c Category) String() string {
	switch c {
	case CategoryPersistent:
		return "persistent"
	case CategoryRuntime:
		return "runtime"
	case CategoryScript:
		return "script"
	case CategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// MarshalText encodes the category by name.
func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }
