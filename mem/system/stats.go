package system

import (
	"github.com/joshuapare/memkit/mem/diag"
	"github.com/joshuapare/memkit/mem/heap"
	"github.com/joshuapare/memkit/mem/pool"
	"github.com/joshuapare/memkit/mem/slot"
)

// PoolStats is one pool's snapshot.
type PoolStats struct {
	ID int `json:"id"`
	pool.Stats
}

// Stats is a snapshot of every tier.
type Stats struct {
	Pools        []PoolStats    `json:"pools"`
	PoolCounters pool.Counters  `json:"pool_counters"`
	Heap         heap.Stats     `json:"heap"`
	Slot         slot.Stats     `json:"slot"`
	Events       map[string]int `json:"events"`
}

// Stats collects a snapshot of every tier and the diagnostic counters.
func (s *System) Stats() Stats {
	st := Stats{
		PoolCounters: s.pool.Counters(),
		Heap:         s.heap.Stats(),
		Slot:         s.slots.Stats(),
		Events:       make(map[string]int, 3),
	}
	for id := range s.pool.NumPools() {
		ps, err := s.pool.Stats(id)
		if err != nil {
			continue
		}
		st.Pools = append(st.Pools, PoolStats{ID: id, Stats: ps})
	}
	for _, k := range []diag.Kind{diag.OutOfMemory, diag.InvalidRequest, diag.Corruption} {
		st.Events[k.String()] = s.rep.Count(k)
	}
	return st
}
