package heap

import "math"

// SizeClassConfig defines the block size class strategy: linear steps for
// small blocks, geometric growth up to MediumMax, one open-ended large class
// above it.
type SizeClassConfig struct {
	// Name for this configuration (for benchmarking)
	Name string

	SmallMin       int // Smallest block size, header included
	SmallMax       int // End of the linear range
	SmallIncrement int // Linear step

	MediumMax    int     // Blocks above this share the large class
	GrowthFactor float64 // Geometric step between SmallMax and MediumMax
}

// Predefined configurations.
var (
	// ConfigRuntime: 16-byte steps up to 512, then 1.5x classes up to 4 KiB.
	// Suited to a standard-library layer issuing many sub-kilobyte requests.
	ConfigRuntime = SizeClassConfig{
		Name:           "Runtime",
		SmallMin:       16,
		SmallMax:       512,
		SmallIncrement: 16,
		MediumMax:      4096,
		GrowthFactor:   1.5,
	}

	// ConfigFine: 8-byte steps up to 256. More lists, less internal slack.
	ConfigFine = SizeClassConfig{
		Name:           "Fine",
		SmallMin:       16,
		SmallMax:       256,
		SmallIncrement: 8,
		MediumMax:      4096,
		GrowthFactor:   1.25,
	}

	// ConfigCoarse: few lists, faster scans, more slack.
	ConfigCoarse = SizeClassConfig{
		Name:           "Coarse",
		SmallMin:       16,
		SmallMax:       512,
		SmallIncrement: 64,
		MediumMax:      4096,
		GrowthFactor:   2.0,
	}

	// DefaultClasses is used when Config.Classes is the zero value.
	DefaultClasses = ConfigRuntime
)

// sizeClassTable holds the computed size class boundaries.
type sizeClassTable struct {
	config     SizeClassConfig
	boundaries []int // Upper bound (inclusive) of each class
	small      []uint8
	numClasses int
}

// newSizeClassTable computes size class boundaries from config.
func newSizeClassTable(config SizeClassConfig) *sizeClassTable {
	t := &sizeClassTable{
		config:     config,
		boundaries: make([]int, 0, 64),
	}

	// Phase 1: linear increments
	for size := config.SmallMin; size < config.SmallMax; size += config.SmallIncrement {
		t.boundaries = append(t.boundaries, size+config.SmallIncrement-1)
	}

	// Phase 2: geometric growth
	size := config.SmallMax
	for size < config.MediumMax {
		next := int(math.Ceil(float64(size) * config.GrowthFactor))
		if next <= size {
			next = size + 1 // Ensure progress
		}
		next = min(next, config.MediumMax)
		t.boundaries = append(t.boundaries, next-1)
		size = next
	}
	t.numClasses = len(t.boundaries)

	// Direct lookup for the linear range, one entry per 8 bytes.
	t.small = make([]uint8, config.SmallMax/blockAlign+1)
	for i := range t.small {
		t.small[i] = uint8(t.search(i * blockAlign))
	}
	return t
}

// classOf returns the class index for a block size. Sizes above MediumMax
// map to the large class, numClasses.
func (t *sizeClassTable) classOf(size int) int {
	if size <= t.config.SmallMax {
		return int(t.small[size/blockAlign])
	}
	return t.search(size)
}

func (t *sizeClassTable) search(size int) int {
	lo, hi := 0, t.numClasses-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if size <= t.boundaries[mid] {
			if mid == 0 || size > t.boundaries[mid-1] {
				return mid
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return t.numClasses
}

// String returns the configuration name.
func (t *sizeClassTable) String() string {
	return t.config.Name
}

func (c SizeClassConfig) validate() bool {
	return c.SmallMin >= minBlock && c.SmallIncrement > 0 && c.SmallIncrement%blockAlign == 0 &&
		c.SmallMax > c.SmallMin && c.SmallMax%blockAlign == 0 &&
		c.MediumMax >= c.SmallMax && c.GrowthFactor > 1
}
