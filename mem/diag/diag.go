// Package diag carries allocator diagnostics: out-of-memory, invalid request
// and corruption events, delivered to a pluggable hook.
package diag

import (
	"errors"
	"fmt"

	"github.com/joshuapare/memkit/internal/logger"
)

// Kind classifies a diagnostic event.
type Kind uint8

const (
	// OutOfMemory: a request could not be satisfied at a layer. Always
	// reported to the caller as a null result as well.
	OutOfMemory Kind = iota
	// InvalidRequest: zero size, bad alignment, or a pointer the tier does not own.
	InvalidRequest
	// Corruption: a consistency check failed. Halts in debug mode.
	Corruption
)

func (k Kind) String() string {
	switch k {
	case OutOfMemory:
		return "out-of-memory"
	case InvalidRequest:
		return "invalid-request"
	case Corruption:
		return "corruption"
	default:
		return fmt.Sprintf("kind(%d)", k)
	}
}

// ErrCorrupt is wrapped by every CorruptionError.
var ErrCorrupt = errors.New("diag: allocator structure corrupt")

// Event is one diagnostic occurrence.
type Event struct {
	Kind Kind
	Tier string // "pool", "heap", "slot"
	Op   string // "alloc", "free", "realloc", "check"
	Ptr  uint32
	Size int
	Err  error
}

// Hook receives diagnostic events.
type Hook func(Event)

// CorruptionError describes a failed consistency check.
type CorruptionError struct {
	Tier    string
	Message string
	Offset  int // Backing offset where the problem was found (-1 if N/A)
}

func (e *CorruptionError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("%s at offset 0x%X: %s", e.Tier, e.Offset, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Tier, e.Message)
}

func (e *CorruptionError) Unwrap() error { return ErrCorrupt }

// Corruptf builds a CorruptionError.
func Corruptf(tier string, off int, format string, args ...any) *CorruptionError {
	return &CorruptionError{Tier: tier, Message: fmt.Sprintf(format, args...), Offset: off}
}

// Reporter routes events to a hook and keeps per-kind counters.
//
// A nil *Reporter is valid and drops everything.
type Reporter struct {
	// Debug enables InvalidRequest delivery and halting on Corruption.
	Debug bool
	// Hook overrides the default, which logs through logger.L.
	Hook Hook

	counts [3]int
}

// NewReporter returns a reporter with the given debug setting and hook.
func NewReporter(debug bool, hook Hook) *Reporter {
	return &Reporter{Debug: debug, Hook: hook}
}

// Report delivers ev. Corruption in debug mode panics after the hook returns.
func (r *Reporter) Report(ev Event) {
	if r == nil {
		return
	}
	if int(ev.Kind) < len(r.counts) {
		r.counts[ev.Kind]++
	}
	if ev.Kind == InvalidRequest && !r.Debug {
		return
	}
	if r.Hook != nil {
		r.Hook(ev)
	} else {
		logEvent(ev)
	}
	if ev.Kind == Corruption && r.Debug {
		err := ev.Err
		if err == nil {
			err = ErrCorrupt
		}
		panic(err)
	}
}

// Count returns how many events of kind k were reported, including ones the
// reporter filtered out.
func (r *Reporter) Count(k Kind) int {
	if r == nil || int(k) >= len(r.counts) {
		return 0
	}
	return r.counts[k]
}

func logEvent(ev Event) {
	args := []any{"tier", ev.Tier, "op", ev.Op, "ptr", ev.Ptr, "size", ev.Size}
	if ev.Err != nil {
		args = append(args, "err", ev.Err)
	}
	switch ev.Kind {
	case OutOfMemory:
		logger.Alloc("allocator out of memory", args...)
	case InvalidRequest:
		logger.Warn("invalid allocator request", args...)
	default:
		logger.Error("allocator corruption", args...)
	}
}
