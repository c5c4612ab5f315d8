package profiler

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/periscope-mesh/periscope/internal/intercept"
)

// ObserverKey is the idempotency key under which the profiler observes a
// slot. A slot is never profiled twice.
const ObserverKey = "periscope-profiler"

// Attach installs a scheduler on the wrap point. Attaching to an
// already-profiled slot is a no-op.
func Attach(wp intercept.WrapPoint, cfg *Config, logger zerolog.Logger) error {
	sched := NewScheduler(cfg, logger)

	if err := wp.Observe(ObserverKey, sched); err != nil {
		if errors.Is(err, intercept.ErrAlreadyObserved) {
			logger.Debug().Msg("Slot already profiled, skipping")
			return nil
		}
		return fmt.Errorf("attach profiler: %w", err)
	}

	logger.Info().
		Str("ranges", FormatRanges(cfg.Ranges)).
		Msg("Profiler attached to hot path")
	return nil
}
