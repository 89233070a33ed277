package diag

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReporter_NilIsSafe(t *testing.T) {
	var r *Reporter
	r.Report(Event{Kind: Corruption})
	assert.Zero(t, r.Count(Corruption))
}

func TestReporter_InvalidRequestFilteredInRelease(t *testing.T) {
	var got []Event
	r := NewReporter(false, func(ev Event) { got = append(got, ev) })

	r.Report(Event{Kind: InvalidRequest, Tier: "pool", Op: "free"})
	r.Report(Event{Kind: OutOfMemory, Tier: "pool", Op: "alloc", Size: 10})

	require.Len(t, got, 1)
	assert.Equal(t, OutOfMemory, got[0].Kind)
	assert.Equal(t, 1, r.Count(InvalidRequest), "filtered events are still counted")
}

func TestReporter_CorruptionHaltsInDebug(t *testing.T) {
	hooked := false
	r := NewReporter(true, func(Event) { hooked = true })
	cerr := Corruptf("heap", 0x40, "bad magic 0x%04X", 0x1234)

	require.PanicsWithError(t, cerr.Error(), func() {
		r.Report(Event{Kind: Corruption, Tier: "heap", Err: cerr})
	})
	assert.True(t, hooked, "hook runs before halting")
}

func TestReporter_CorruptionContinuesInRelease(t *testing.T) {
	r := NewReporter(false, func(Event) {})
	require.NotPanics(t, func() {
		r.Report(Event{Kind: Corruption, Tier: "slot"})
	})
	assert.Equal(t, 1, r.Count(Corruption))
}

func TestCorruptionError(t *testing.T) {
	err := Corruptf("pool", -1, "free list out of order")
	assert.Equal(t, "pool: free list out of order", err.Error())
	assert.True(t, errors.Is(err, ErrCorrupt))

	err = Corruptf("pool", 0x80, "bad magic")
	assert.Equal(t, "pool at offset 0x80: bad magic", err.Error())
}
