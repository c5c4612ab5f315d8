package profiler

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/periscope-mesh/periscope/internal/constants"
	perrors "github.com/periscope-mesh/periscope/internal/errors"
)

// traceEvent is one entry in the Chrome trace event array, consumable by
// standard timeline viewers.
type traceEvent struct {
	Name     string                 `json:"name"`
	Category string                 `json:"cat,omitempty"`
	Phase    string                 `json:"ph"`
	TS       int64                  `json:"ts"`
	Duration int64                  `json:"dur,omitempty"`
	PID      int                    `json:"pid"`
	TID      int                    `json:"tid"`
	Args     map[string]interface{} `json:"args,omitempty"`
}

type traceFile struct {
	TraceEvents     []traceEvent      `json:"traceEvents"`
	DisplayTimeUnit string            `json:"displayTimeUnit"`
	OtherData       map[string]string `json:"otherData"`
}

// Exporter serializes captures to Chrome trace files. Export failures are
// logged and swallowed: they must never abort the host workload.
type Exporter struct {
	logger  zerolog.Logger
	pattern string
	export  bool
	target  string
}

// NewExporter builds the exporter for cfg.
func NewExporter(cfg *Config, logger zerolog.Logger) *Exporter {
	return &Exporter{
		logger:  logger.With().Str("component", "exporter").Logger(),
		pattern: cfg.OutputPattern,
		export:  cfg.ExportTrace,
		target:  cfg.TargetSymbol,
	}
}

// Export writes the capture's trace file and returns its path. When export
// is disabled no file I/O happens; the skip is logged instead.
func (e *Exporter) Export(c *Capture) (string, error) {
	if !e.export {
		e.logger.Info().
			Str("session", c.SessionID).
			Str("window", c.Window.String()).
			Msg("Trace export disabled, skipping file write")
		return "", nil
	}

	path := OutputPath(e.pattern, os.Getpid(), DetectRank())

	if err := e.write(c, path); err != nil {
		e.logger.Warn().Err(err).Str("path", path).Msg("Trace export failed, continuing without trace file")
		return "", err
	}

	e.logger.Info().
		Str("session", c.SessionID).
		Str("window", c.Window.String()).
		Str("path", path).
		Int("events", len(c.Calls)).
		Msg("Exported trace")

	return path, nil
}

func (e *Exporter) write(c *Capture, path string) error {
	pid := os.Getpid()
	rank := DetectRank()
	tid, _ := strconv.Atoi(rank)

	events := make([]traceEvent, 0, len(c.Calls)+1)
	events = append(events, traceEvent{
		Name:  "process_name",
		Phase: "M",
		PID:   pid,
		TID:   tid,
		Args:  map[string]interface{}{"name": "periscope worker"},
	})

	for _, call := range c.Calls {
		events = append(events, traceEvent{
			Name:     e.target,
			Category: "call",
			Phase:    "X",
			TS:       call.Start.Sub(c.StartedAt).Microseconds(),
			Duration: call.Duration.Microseconds(),
			PID:      pid,
			TID:      tid,
			Args: map[string]interface{}{
				"call_index": call.Index,
				"failed":     call.Failed,
			},
		})
	}

	out := traceFile{
		TraceEvents:     events,
		DisplayTimeUnit: "ms",
		OtherData: map[string]string{
			"sessionId":  c.SessionID,
			"window":     c.Window.String(),
			"activities": activitiesString(c.Activities),
			"rank":       rank,
		},
	}

	f, err := os.Create(path) // #nosec G304 -- path derives from the configured output pattern.
	if err != nil {
		return fmt.Errorf("create trace file: %w", err)
	}
	defer perrors.DeferClose(e.logger, f, "failed closing trace file")

	enc := json.NewEncoder(f)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("encode trace: %w", err)
	}

	return nil
}

// OutputPath substitutes {pid} and {rank} in the output pattern.
func OutputPath(pattern string, pid int, rank string) string {
	path := strings.ReplaceAll(pattern, "{pid}", strconv.Itoa(pid))
	return strings.ReplaceAll(path, "{rank}", rank)
}

// DetectRank returns the worker's parallel-group ordinal from the
// environment. Workers outside a parallel group report rank 0.
func DetectRank() string {
	for _, name := range constants.RankEnvVars {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return "0"
}

func activitiesString(activities []Activity) string {
	parts := make([]string, len(activities))
	for i, a := range activities {
		parts[i] = string(a)
	}
	return strings.Join(parts, ",")
}
