package shmkv

import "fmt"

// Backend selects which sync primitive (§4.5) guards the table.
type Backend int

const (
	// BackendRWLock is the primary backend: a process-shared reader/writer
	// lock lets concurrent readers make progress while writes stay
	// exclusive.
	BackendRWLock Backend = iota

	// BackendMutex is the documented degradation: a single process-shared
	// mutex guards both reads and writes, so concurrent readers serialize.
	BackendMutex
)

func (b Backend) String() string {
	switch b {
	case BackendRWLock:
		return "rwlock"
	case BackendMutex:
		return "mutex"
	default:
		return fmt.Sprintf("Backend(%d)", int(b))
	}
}

// Stats is the typed result of [Table.Stats]: Part I's stats() report,
// exposed as data rather than only as text so callers can consume it
// programmatically. hash_seed is deliberately not exposed here - see
// SPEC_FULL.md §9.
type Stats struct {
	CapacityTotal    int32
	Live             int32
	Tombstones       int32
	LoadFactor       float64
	AvgProbeDistance float64
	MaxProbeDistance int
}

// String renders the human-readable report.
func (s Stats) String() string {
	return fmt.Sprintf(
		"capacity=%d live=%d tomb=%d load=%.4f avg_probe=%.2f max_probe=%d",
		s.CapacityTotal, s.Live, s.Tombstones, s.LoadFactor, s.AvgProbeDistance, s.MaxProbeDistance,
	)
}
