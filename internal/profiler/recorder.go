package profiler

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"

	"github.com/periscope-mesh/periscope/internal/constants"
)

// CallEvent is one recorded invocation of the wrapped method.
type CallEvent struct {
	Index    uint64
	Start    time.Time
	Duration time.Duration
	Failed   bool
}

// Capture is the data recovered from a stopped recording scope.
type Capture struct {
	SessionID  string
	Window     Range
	Activities []Activity
	StartedAt  time.Time
	StoppedAt  time.Time
	Calls      []CallEvent

	// CPUBusy is the process CPU time consumed while the scope was open
	// (user+system), when CPU activity is recorded.
	CPUBusy time.Duration

	// PeakRSS is the highest resident set size sampled during the scope,
	// when memory recording is enabled.
	PeakRSS uint64

	// Samples counts process-stat samples taken while the scope was open.
	Samples int
}

// Recorder is an active profiling scope bounded by a window's start and
// stop. Implementations must make Stop safe to call exactly once after a
// successful Start.
type Recorder interface {
	Start() error
	RecordCall(index uint64, d time.Duration, failed bool)
	Stop() (*Capture, error)
}

// RecorderFactory builds a fresh recorder for a window. The scheduler uses
// one recorder per window; recorders are never reused.
type RecorderFactory func(window Range) Recorder

// sampleRecorder is the default recorder. It records per-call events fed by
// the scheduler, computes the process CPU-time delta over the scope when CPU
// activity is recorded, and samples RSS on an interval while the scope is
// open when memory recording is enabled. Sampling errors never propagate to
// the workload.
type sampleRecorder struct {
	cfg      *Config
	window   Range
	logger   zerolog.Logger
	interval time.Duration

	mu        sync.Mutex
	sessionID string
	startedAt time.Time
	calls     []CallEvent
	peakRSS   uint64
	samples   int

	proc     *process.Process
	cpuStart float64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewSampleRecorder builds the default recorder factory for cfg.
func NewSampleRecorder(cfg *Config, logger zerolog.Logger) RecorderFactory {
	return func(window Range) Recorder {
		return &sampleRecorder{
			cfg:      cfg,
			window:   window,
			logger:   logger.With().Str("component", "recorder").Logger(),
			interval: constants.DefaultSampleInterval,
		}
	}
}

func (r *sampleRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done != nil {
		return fmt.Errorf("recorder already started")
	}

	r.sessionID = uuid.NewString()
	r.startedAt = time.Now()
	r.calls = make([]CallEvent, 0, r.window.Len())
	r.done = make(chan struct{})

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		// Recording proceeds with call events only.
		r.logger.Warn().Err(err).Msg("Process handle unavailable, skipping stat sampling")
	} else {
		r.proc = proc
		if times, err := proc.Times(); err == nil {
			r.cpuStart = times.User + times.System
		}
	}

	if r.proc != nil && r.cfg.RecordMemory {
		r.wg.Add(1)
		go r.sampleLoop()
	}

	return nil
}

func (r *sampleRecorder) sampleLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.sampleOnce()
		}
	}
}

func (r *sampleRecorder) sampleOnce() {
	mem, err := r.proc.MemoryInfo()
	if err != nil {
		r.logger.Debug().Err(err).Msg("Memory sample failed")
		return
	}

	r.mu.Lock()
	r.samples++
	if mem.RSS > r.peakRSS {
		r.peakRSS = mem.RSS
	}
	r.mu.Unlock()
}

func (r *sampleRecorder) RecordCall(index uint64, d time.Duration, failed bool) {
	now := time.Now()

	r.mu.Lock()
	r.calls = append(r.calls, CallEvent{
		Index:    index,
		Start:    now.Add(-d),
		Duration: d,
		Failed:   failed,
	})
	r.mu.Unlock()
}

func (r *sampleRecorder) Stop() (*Capture, error) {
	r.mu.Lock()
	if r.done == nil {
		r.mu.Unlock()
		return nil, fmt.Errorf("recorder not started")
	}
	done := r.done
	r.done = nil
	r.mu.Unlock()

	close(done)
	r.wg.Wait()

	if r.proc != nil && r.cfg.RecordMemory {
		r.sampleOnce()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	capture := &Capture{
		SessionID:  r.sessionID,
		Window:     r.window,
		Activities: r.cfg.Activities,
		StartedAt:  r.startedAt,
		StoppedAt:  time.Now(),
		Calls:      r.calls,
		PeakRSS:    r.peakRSS,
		Samples:    r.samples,
	}

	if r.proc != nil && r.cfg.HasActivity(ActivityCPU) {
		if times, err := r.proc.Times(); err == nil {
			busy := times.User + times.System - r.cpuStart
			if busy > 0 {
				capture.CPUBusy = time.Duration(busy * float64(time.Second))
			}
		}
	}

	return capture, nil
}
