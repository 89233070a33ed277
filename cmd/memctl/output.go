package main

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"

	"github.com/joshuapare/memkit/mem/system"
	"github.com/joshuapare/memkit/mem/track"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// runOutput is what `run --json` prints.
type runOutput struct {
	Result Result        `json:"result"`
	Stats  system.Stats  `json:"stats"`
	Report *track.Report `json:"report,omitempty"`
}

// printJSON outputs v as indented JSON.
func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// printStats renders a human-readable summary of every tier.
func printStats(w io.Writer, st system.Stats) {
	for _, p := range st.Pools {
		fmt.Fprintf(w, "pool %d: %d/%d bytes free, largest %d, %d free / %d used regions\n",
			p.ID, p.Free, p.Total, p.LargestFree, p.FreeRegions, p.UsedRegions)
	}
	c := st.PoolCounters
	fmt.Fprintf(w, "pool ops: %d allocs, %d releases, %d resizes (%d shrunk, %d in block, %d in place, %d backward, %d moved), %d failures\n",
		c.Allocs, c.Releases, c.Resizes, c.Shrinks, c.GrowInBlock, c.GrowInPlace, c.GrowBackward, c.Moves, c.Failures)

	h := st.Heap
	fmt.Fprintf(w, "heap: %d heaps, %d bytes, %d free in %d blocks, %d used blocks, %d large\n",
		h.Heaps, h.HeapBytes, h.FreeBytes, h.FreeBlocks, h.UsedBlocks, h.LargeAllocs)
	fmt.Fprintf(w, "heap ops: %d allocs, %d frees, %d heaps created, %d released, %d halvings, %d shrinks kept, %d spilled to pool\n",
		h.Allocs, h.Frees, h.HeapsCreated, h.HeapsReleased, h.HeapHalvings, h.ShrinkKept, h.Spills)

	s := st.Slot
	fmt.Fprintf(w, "slot: %d arrays, %d/%d slots used, %d passed through, %d shrinks kept\n",
		s.Arrays, s.Used, s.Slots, s.PassedThrough, s.ShrinkKept)
	fmt.Fprintf(w, "events: %d out-of-memory, %d invalid, %d corruption\n",
		st.Events["out-of-memory"], st.Events["invalid-request"], st.Events["corruption"])
}
