package system

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/memkit/mem/diag"
	"github.com/joshuapare/memkit/mem/heap"
	"github.com/joshuapare/memkit/mem/pool"
	"github.com/joshuapare/memkit/mem/slot"
)

// Environment overrides applied by Load and FromEnv.
const (
	EnvDebug    = "MEMKIT_DEBUG"
	EnvLogAlloc = "MEMKIT_LOG_ALLOC"
)

// ErrConfig wraps every configuration problem.
var ErrConfig = errors.New("system: invalid configuration")

// Config describes the whole allocator stack. The zero value of any field
// takes the default.
type Config struct {
	// Granularity is the pool block size.
	Granularity int `yaml:"granularity"`
	// Pools lists one or two pool sizes in bytes.
	Pools []int `yaml:"pools"`

	Heap HeapConfig `yaml:"heap"`
	Slot SlotConfig `yaml:"slot"`

	// Debug delivers invalid-request events and halts on corruption.
	Debug bool `yaml:"debug"`
	// Track records every allocation in a side table for reports.
	Track bool `yaml:"track"`
	// LogAlloc logs every allocator operation at debug level.
	LogAlloc bool `yaml:"log_alloc"`

	// Hook receives diagnostic events. Nil logs them.
	Hook diag.Hook `yaml:"-"`
}

// HeapConfig tunes the segregated-fit tier.
type HeapConfig struct {
	Size        int    `yaml:"size"`
	MinSize     int    `yaml:"min_size"`
	LargeCutoff int    `yaml:"large_cutoff"`
	Classes     string `yaml:"classes"` // runtime, fine or coarse
	Pool        int    `yaml:"pool"`
	// Top carves heaps from the high end of the pool, away from persistent
	// bottom-up allocations.
	Top bool `yaml:"top"`
}

// SlotConfig tunes the fixed-slot tier.
type SlotConfig struct {
	Min      int `yaml:"min"`
	Max      int `yaml:"max"`
	Step     int `yaml:"step"`
	Capacity int `yaml:"capacity"`
}

var classSets = map[string]heap.SizeClassConfig{
	"":        heap.DefaultClasses,
	"runtime": heap.ConfigRuntime,
	"fine":    heap.ConfigFine,
	"coarse":  heap.ConfigCoarse,
}

// Default returns an 8 MiB single-pool configuration with heaps taken
// top-down.
func Default() Config {
	return Config{
		Granularity: pool.DefaultGranularity,
		Pools:       []int{8 << 20},
		Heap: HeapConfig{
			Size:        heap.DefaultHeapSize,
			MinSize:     heap.DefaultMinHeapSize,
			LargeCutoff: heap.DefaultLargeCutoff,
			Classes:     "runtime",
			Top:         true,
		},
		Slot: SlotConfig{
			Min:      slot.DefaultMin,
			Max:      slot.DefaultMax,
			Step:     slot.DefaultStep,
			Capacity: slot.DefaultCapacity,
		},
	}
}

// Load reads a YAML configuration on top of Default and applies environment
// overrides.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("system: read config: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %s: %w", ErrConfig, path, err)
	}
	return cfg.FromEnv()
}

// FromEnv applies MEMKIT_DEBUG and MEMKIT_LOG_ALLOC.
func (c Config) FromEnv() (Config, error) {
	if v, ok := os.LookupEnv(EnvDebug); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%w: %s=%q: %w", ErrConfig, EnvDebug, v, err)
		}
		c.Debug = b
	}
	if os.Getenv(EnvLogAlloc) != "" {
		c.LogAlloc = true
	}
	return c, nil
}

// BackingSize is the number of bytes New maps: the reserved first granule
// plus every pool.
func (c Config) BackingSize() int {
	n := c.Granularity
	for _, s := range c.Pools {
		n += s
	}
	return n
}

func (c Config) heapConfig(rep *diag.Reporter) (heap.Config, error) {
	classes, ok := classSets[c.Heap.Classes]
	if !ok {
		return heap.Config{}, fmt.Errorf("%w: unknown heap classes %q", ErrConfig, c.Heap.Classes)
	}
	flags := pool.PoolID(c.Heap.Pool)
	if c.Heap.Top {
		flags |= pool.Top
	}
	return heap.Config{
		Classes:     classes,
		LargeCutoff: c.Heap.LargeCutoff,
		HeapSize:    c.Heap.Size,
		MinHeapSize: c.Heap.MinSize,
		PoolFlags:   flags,
		Reporter:    rep,
	}, nil
}

func (c Config) slotConfig(rep *diag.Reporter) slot.Config {
	return slot.Config{
		Min:      c.Slot.Min,
		Max:      c.Slot.Max,
		Step:     c.Slot.Step,
		Capacity: c.Slot.Capacity,
		Reporter: rep,
	}
}
