package profiler

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"
)

// Summary aggregates a capture into the figures logged after every window,
// regardless of the export setting.
type Summary struct {
	SessionID string
	Window    Range
	Wall      time.Duration

	Calls  int
	Failed int

	Total time.Duration
	Mean  time.Duration
	Max   time.Duration

	CPUBusy time.Duration
	PeakRSS uint64
}

// Summarize computes aggregate statistics from a capture. Safe for nil or
// empty captures.
func Summarize(c *Capture) *Summary {
	s := &Summary{}
	if c == nil {
		return s
	}

	s.SessionID = c.SessionID
	s.Window = c.Window
	s.Wall = c.StoppedAt.Sub(c.StartedAt)
	s.CPUBusy = c.CPUBusy
	s.PeakRSS = c.PeakRSS

	for _, call := range c.Calls {
		s.Calls++
		if call.Failed {
			s.Failed++
		}
		s.Total += call.Duration
		if call.Duration > s.Max {
			s.Max = call.Duration
		}
	}
	if s.Calls > 0 {
		s.Mean = s.Total / time.Duration(s.Calls)
	}

	return s
}

// Table renders the summary as a human-readable table for the log.
func (s *Summary) Table() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "window\t%s\n", s.Window)
	fmt.Fprintf(w, "wall time\t%s\n", s.Wall.Round(time.Millisecond))
	fmt.Fprintf(w, "calls recorded\t%d\n", s.Calls)
	if s.Failed > 0 {
		fmt.Fprintf(w, "calls failed\t%d\n", s.Failed)
	}
	fmt.Fprintf(w, "call time total\t%s\n", s.Total.Round(time.Microsecond))
	fmt.Fprintf(w, "call time mean\t%s\n", s.Mean.Round(time.Microsecond))
	fmt.Fprintf(w, "call time max\t%s\n", s.Max.Round(time.Microsecond))
	if s.CPUBusy > 0 {
		fmt.Fprintf(w, "cpu busy\t%s\n", s.CPUBusy.Round(time.Millisecond))
	}
	if s.PeakRSS > 0 {
		fmt.Fprintf(w, "peak rss\t%.1f MiB\n", float64(s.PeakRSS)/(1<<20))
	}

	_ = w.Flush()
	return b.String()
}
