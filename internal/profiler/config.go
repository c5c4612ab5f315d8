// Package profiler implements the in-process profiling controller: config
// resolution, call-count-windowed recording, summaries and trace export.
package profiler

import (
	"github.com/periscope-mesh/periscope/internal/constants"
)

// Activity identifies a profiled device class.
type Activity string

const (
	// ActivityCPU records host-side activity.
	ActivityCPU Activity = "CPU"

	// ActivityAccelerator records device-side activity.
	ActivityAccelerator Activity = "ACCELERATOR"
)

// Range is a recording window over call indices. The window is half-open:
// calls with Start <= index < End are recorded, so End-Start calls fall
// inside it. Indices are 1-based (the first observed call has index 1).
type Range struct {
	Start uint64
	End   uint64
}

// Config is the immutable profiling configuration snapshot, built once per
// process by the resolver and safe for concurrent reads.
type Config struct {
	// Ranges holds the recording windows, ordered and disjoint. The resolver
	// never leaves this empty; a hand-built config with no windows never
	// records.
	Ranges []Range

	// Activities selects the device classes to record. Never empty.
	Activities []Activity

	RecordShapes bool
	CaptureStack bool
	RecordMemory bool

	// ExportTrace controls whether captures are written to disk. When false
	// recorded data is summarized to the log only.
	ExportTrace bool

	// OutputPattern names exported trace files; {pid} and {rank} are
	// substituted at export time.
	OutputPattern string

	// Debug raises log verbosity. No effect on recording behavior.
	Debug bool

	// TargetModule is the module whose load triggers interception.
	TargetModule string

	// TargetSymbol is the method slot wrapped inside the target module.
	TargetSymbol string
}

// DefaultConfig returns the hardcoded configuration defaults.
func DefaultConfig() *Config {
	ranges, _ := ParseRanges(constants.DefaultRanges)
	return &Config{
		Ranges:        ranges,
		Activities:    []Activity{ActivityCPU, ActivityAccelerator},
		RecordShapes:  true,
		CaptureStack:  true,
		RecordMemory:  false,
		ExportTrace:   true,
		OutputPattern: constants.DefaultOutputPattern,
		Debug:         false,
		TargetModule:  constants.DefaultTargetModule,
		TargetSymbol:  constants.DefaultTargetSymbol,
	}
}

// HasActivity reports whether the config records the given activity.
func (c *Config) HasActivity(a Activity) bool {
	for _, act := range c.Activities {
		if act == a {
			return true
		}
	}
	return false
}
