package profiler

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSampleRecorder_Lifecycle(t *testing.T) {
	cfg := DefaultConfig()
	factory := NewSampleRecorder(cfg, zerolog.Nop())

	rec := factory(Range{Start: 1, End: 4})
	require.NoError(t, rec.Start())

	rec.RecordCall(1, 5*time.Millisecond, false)
	rec.RecordCall(2, 7*time.Millisecond, true)
	rec.RecordCall(3, 3*time.Millisecond, false)

	capture, err := rec.Stop()
	require.NoError(t, err)

	assert.NotEmpty(t, capture.SessionID)
	assert.Equal(t, Range{Start: 1, End: 4}, capture.Window)
	assert.Equal(t, cfg.Activities, capture.Activities)
	assert.False(t, capture.StoppedAt.Before(capture.StartedAt))

	require.Len(t, capture.Calls, 3)
	assert.EqualValues(t, 2, capture.Calls[1].Index)
	assert.True(t, capture.Calls[1].Failed)
	assert.Equal(t, 7*time.Millisecond, capture.Calls[1].Duration)
}

func TestSampleRecorder_DoubleStart(t *testing.T) {
	rec := NewSampleRecorder(DefaultConfig(), zerolog.Nop())(Range{Start: 1, End: 2})
	require.NoError(t, rec.Start())
	assert.Error(t, rec.Start())

	_, err := rec.Stop()
	require.NoError(t, err)
}

func TestSampleRecorder_StopBeforeStart(t *testing.T) {
	rec := NewSampleRecorder(DefaultConfig(), zerolog.Nop())(Range{Start: 1, End: 2})
	_, err := rec.Stop()
	assert.Error(t, err)
}

func TestSampleRecorder_NoMemorySamplingUnlessEnabled(t *testing.T) {
	cfg := DefaultConfig() // RecordMemory defaults to false
	rec := NewSampleRecorder(cfg, zerolog.Nop())(Range{Start: 1, End: 2})
	require.NoError(t, rec.Start())

	capture, err := rec.Stop()
	require.NoError(t, err)

	assert.Zero(t, capture.PeakRSS)
	assert.Zero(t, capture.Samples)
}

func TestSampleRecorder_MemorySamplingWhenEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RecordMemory = true
	rec := NewSampleRecorder(cfg, zerolog.Nop())(Range{Start: 1, End: 2})
	require.NoError(t, rec.Start())

	capture, err := rec.Stop()
	require.NoError(t, err)

	// Stop takes a final sample even when the ticker never fired.
	assert.GreaterOrEqual(t, capture.Samples, 1)
	assert.NotZero(t, capture.PeakRSS)
}

func TestSampleRecorder_DistinctSessions(t *testing.T) {
	factory := NewSampleRecorder(DefaultConfig(), zerolog.Nop())

	a := factory(Range{Start: 1, End: 2})
	b := factory(Range{Start: 2, End: 3})
	require.NoError(t, a.Start())
	require.NoError(t, b.Start())

	ca, err := a.Stop()
	require.NoError(t, err)
	cb, err := b.Stop()
	require.NoError(t, err)

	assert.NotEqual(t, ca.SessionID, cb.SessionID)
}
