package profiler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSummarize(t *testing.T) {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := &Capture{
		SessionID: "sess-2",
		Window:    Range{Start: 1, End: 6},
		StartedAt: started,
		StoppedAt: started.Add(2 * time.Second),
		CPUBusy:   900 * time.Millisecond,
		PeakRSS:   256 << 20,
		Calls: []CallEvent{
			{Index: 1, Duration: 10 * time.Millisecond},
			{Index: 2, Duration: 30 * time.Millisecond, Failed: true},
			{Index: 3, Duration: 20 * time.Millisecond},
		},
	}

	s := Summarize(c)
	assert.Equal(t, "sess-2", s.SessionID)
	assert.Equal(t, 2*time.Second, s.Wall)
	assert.Equal(t, 3, s.Calls)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 60*time.Millisecond, s.Total)
	assert.Equal(t, 20*time.Millisecond, s.Mean)
	assert.Equal(t, 30*time.Millisecond, s.Max)
}

func TestSummarize_Nil(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Calls)
	assert.Zero(t, s.Mean)
	assert.NotPanics(t, func() { _ = s.Table() })
}

func TestSummary_Table(t *testing.T) {
	c := &Capture{
		Window: Range{Start: 100, End: 150},
		Calls:  []CallEvent{{Index: 100, Duration: 5 * time.Millisecond}},
	}

	out := Summarize(c).Table()
	assert.Contains(t, out, "window")
	assert.Contains(t, out, "100-150")
	assert.Contains(t, out, "calls recorded")
	assert.NotContains(t, out, "calls failed", "failure row only appears when calls failed")
	assert.NotContains(t, out, "peak rss", "rss row only appears when sampled")
}
