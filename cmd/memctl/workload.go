package main

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joshuapare/memkit/internal/logger"
	"github.com/joshuapare/memkit/mem"
	"github.com/joshuapare/memkit/mem/pool"
	"github.com/joshuapare/memkit/mem/system"
)

// Result summarises one workload run.
type Result struct {
	Workload string `json:"workload"`
	Ops      int    `json:"ops"`
	Failures int    `json:"failures"` // requests that returned Nil
	Live     int    `json:"live"`     // allocations still held at the end
}

// workload drives a System. check, when non-nil, runs after every operation.
type workload func(sys *system.System, steps int, rng *rand.Rand, check func() error) (Result, error)

var workloads = map[string]workload{
	"churn":      runChurn,
	"script":     runScript,
	"scenario-a": runScenarioA,
	"scenario-b": runScenarioB,
}

type liveAlloc struct {
	ptr  mem.Ptr
	size int
	kind byte // 'p' persistent, 'h' heap, 's' script
}

// mixedSize returns a request size from a runtime-like distribution.
func mixedSize(rng *rand.Rand) int {
	switch n := rng.Intn(100); {
	case n < 60:
		return 16 + rng.Intn(33)
	case n < 90:
		return 1 + rng.Intn(512)
	case n < 98:
		return 512 + rng.Intn(2048)
	default:
		return 4096 + rng.Intn(16384)
	}
}

// maxLive bounds the churn live set so long runs reach a steady state.
const maxLive = 4096

// churner mixes persistent, heap and script traffic at random. Its live set
// carries over between runs.
type churner struct {
	sys  *system.System
	live []liveAlloc
}

func runChurn(sys *system.System, steps int, rng *rand.Rand, check func() error) (Result, error) {
	c := &churner{sys: sys}
	return c.run(steps, rng, check)
}

func (c *churner) release(i int) {
	a := c.live[i]
	switch a.kind {
	case 'p':
		_ = c.sys.ReleasePersistent(a.ptr)
	case 'h':
		c.sys.Free(a.ptr)
	case 's':
		c.sys.ScriptHook(nil, a.ptr, a.size, 0)
	}
	c.live[i] = c.live[len(c.live)-1]
	c.live = c.live[:len(c.live)-1]
}

func (c *churner) alloc(rng *rand.Rand) liveAlloc {
	size := mixedSize(rng)
	switch k := rng.Intn(10); {
	case k == 0:
		return liveAlloc{c.sys.Persistent(size, 8<<rng.Intn(4)), size, 'p'}
	case k < 6:
		return liveAlloc{c.sys.Malloc(size), size, 'h'}
	default:
		return liveAlloc{c.sys.ScriptHook(nil, mem.Nil, 0, size), size, 's'}
	}
}

func (c *churner) resize(a *liveAlloc, size int) bool {
	var q mem.Ptr
	switch a.kind {
	case 'p':
		q = c.sys.ResizePersistent(a.ptr, size)
	case 'h':
		q = c.sys.Realloc(a.ptr, size)
	case 's':
		q = c.sys.ScriptHook(nil, a.ptr, a.size, size)
	}
	if q == mem.Nil {
		return false
	}
	a.ptr, a.size = q, size
	return true
}

func (c *churner) run(steps int, rng *rand.Rand, check func() error) (Result, error) {
	res := Result{Workload: "churn"}
	for range steps {
		res.Ops++
		switch op := rng.Intn(10); {
		case len(c.live) >= maxLive || (op >= 5 && op < 8 && len(c.live) > 0):
			c.release(rng.Intn(len(c.live)))
		case op < 8 || len(c.live) == 0:
			a := c.alloc(rng)
			if a.ptr == mem.Nil {
				res.Failures++
				break
			}
			c.live = append(c.live, a)
		default:
			if !c.resize(&c.live[rng.Intn(len(c.live))], mixedSize(rng)) {
				res.Failures++
			}
		}
		if check != nil {
			if err := check(); err != nil {
				return res, fmt.Errorf("after op %d: %w", res.Ops, err)
			}
		}
	}
	res.Live = len(c.live)
	logger.Debug("workload done", "workload", res.Workload, "ops", res.Ops, "failures", res.Failures)
	return res, nil
}

// runScript issues interpreter-style traffic through the slot hook only.
func runScript(sys *system.System, steps int, rng *rand.Rand, check func() error) (Result, error) {
	res := Result{Workload: "script"}
	type obj struct {
		ptr  mem.Ptr
		size int
	}
	var live []obj
	for range steps {
		res.Ops++
		if len(live) == 0 || rng.Intn(3) > 0 {
			size := 16 + rng.Intn(33)
			if rng.Intn(20) == 0 {
				size = 64 + rng.Intn(1000)
			}
			p := sys.ScriptHook(nil, mem.Nil, 0, size)
			if p == mem.Nil {
				res.Failures++
			} else {
				live = append(live, obj{p, size})
			}
		} else {
			i := rng.Intn(len(live))
			sys.ScriptHook(nil, live[i].ptr, live[i].size, 0)
			live[i] = live[len(live)-1]
			live = live[:len(live)-1]
		}
		if check != nil {
			if err := check(); err != nil {
				return res, fmt.Errorf("after op %d: %w", res.Ops, err)
			}
		}
	}
	res.Live = len(live)
	return res, nil
}

// runScenarioA: 100 bottom allocations of 40 bytes, reuse of the 50th after
// release, then one 900000-byte top allocation.
func runScenarioA(sys *system.System, _ int, _ *rand.Rand, check func() error) (Result, error) {
	res := Result{Workload: "scenario-a"}
	pa := sys.Pool()
	ptrs := make([]mem.Ptr, 100)
	for i := range ptrs {
		p, err := pa.Allocate(40, 0, pool.Bottom)
		res.Ops++
		if err != nil {
			return res, fmt.Errorf("allocation %d: %w", i, err)
		}
		ptrs[i] = p
	}
	if err := pa.Release(ptrs[49]); err != nil {
		return res, err
	}
	again, err := pa.Allocate(40, 0, pool.Bottom)
	res.Ops += 2
	if err != nil {
		return res, err
	}
	if again != ptrs[49] {
		return res, fmt.Errorf("released slot not reused: got 0x%X want 0x%X", again, ptrs[49])
	}
	if _, err := pa.Allocate(900000, 0, pool.Top); err != nil {
		res.Failures++
	}
	res.Ops++
	res.Live = 101 - res.Failures
	if check != nil {
		return res, check()
	}
	return res, nil
}

// runScenarioB: a 17-byte slot is reused after release, and a 1000-byte
// request goes to the heap without growing the slot array set.
func runScenarioB(sys *system.System, _ int, _ *rand.Rand, check func() error) (Result, error) {
	res := Result{Workload: "scenario-b", Ops: 4}
	p := sys.ScriptHook(nil, mem.Nil, 0, 17)
	sys.ScriptHook(nil, p, 17, 0)
	q := sys.ScriptHook(nil, mem.Nil, 0, 17)
	if p == mem.Nil || p != q {
		return res, fmt.Errorf("17-byte slot not reused: 0x%X then 0x%X", p, q)
	}
	arrays := sys.Slot().Arrays()
	big := sys.ScriptHook(nil, mem.Nil, 0, 1000)
	if big == mem.Nil || !sys.Heap().Owns(big) || sys.Slot().Arrays() != arrays {
		return res, fmt.Errorf("1000-byte request was not served by the heap tier")
	}
	res.Live = 2
	if check != nil {
		return res, check()
	}
	return res, nil
}

// TraceOp is one step of a recorded trace.
type TraceOp struct {
	Op    string `yaml:"op"` // persistent, release, malloc, calloc, realloc, free, script, check
	ID    string `yaml:"id"`
	Size  int    `yaml:"size"`
	Count int    `yaml:"count"`
	Align int    `yaml:"align"`
}

// Trace is a YAML list of operations naming allocations by id.
type Trace struct {
	Ops []TraceOp `yaml:"ops"`
}

// loadTrace reads a trace file.
func loadTrace(path string) (*Trace, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	var tr Trace
	if err := yaml.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("parse trace %s: %w", path, err)
	}
	return &tr, nil
}

// replay runs a trace against sys.
func (tr *Trace) replay(sys *system.System, check func() error) (Result, error) {
	res := Result{Workload: "trace"}
	type rec struct {
		ptr  mem.Ptr
		size int
	}
	ids := map[string]rec{}
	for i, op := range tr.Ops {
		res.Ops++
		var p mem.Ptr
		switch op.Op {
		case "persistent":
			p = sys.Persistent(op.Size, op.Align)
		case "malloc":
			p = sys.Malloc(op.Size)
		case "calloc":
			p = sys.Calloc(op.Count, op.Size)
		case "realloc":
			p = sys.Realloc(ids[op.ID].ptr, op.Size)
		case "script":
			r := ids[op.ID]
			p = sys.ScriptHook(nil, r.ptr, r.size, op.Size)
		case "release":
			if err := sys.ReleasePersistent(ids[op.ID].ptr); err != nil {
				return res, fmt.Errorf("op %d: %w", i, err)
			}
			delete(ids, op.ID)
			continue
		case "free":
			sys.Free(ids[op.ID].ptr)
			delete(ids, op.ID)
			continue
		case "check":
			if err := sys.Check(); err != nil {
				return res, fmt.Errorf("op %d: %w", i, err)
			}
			continue
		default:
			return res, fmt.Errorf("op %d: unknown operation %q", i, op.Op)
		}
		if p == mem.Nil {
			if op.Size > 0 {
				res.Failures++
			}
			if op.Size == 0 {
				delete(ids, op.ID)
			}
			continue
		}
		ids[op.ID] = rec{p, op.Size * max(op.Count, 1)}
		if check != nil {
			if err := check(); err != nil {
				return res, fmt.Errorf("op %d: %w", i, err)
			}
		}
	}
	res.Live = len(ids)
	return res, nil
}
