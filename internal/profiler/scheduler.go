package profiler

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Phase is the scheduler's recording state.
type Phase int

const (
	// PhaseIdle means no window is currently open.
	PhaseIdle Phase = iota

	// PhaseRecording means the scheduler is inside an open window.
	PhaseRecording

	// PhaseExported marks a window whose recorder has stopped and whose
	// trace has been handled. It is transient: the scheduler immediately
	// re-evaluates the next window and settles on Idle or Recording.
	PhaseExported
)

// Scheduler drives call-count-windowed recording for one wrapped method
// slot. It owns the call counter and the active recorder, implements
// intercept.CallObserver, and assumes a single logical execution context
// per process; if the slot is invoked from multiple goroutines all
// transitions serialize through the internal mutex, which is held only for
// the transition decision, never across the wrapped call.
type Scheduler struct {
	mu sync.Mutex

	cfg         *Config
	logger      zerolog.Logger
	newRecorder RecorderFactory
	exporter    *Exporter

	callIndex uint64
	window    int // index into cfg.Ranges of the current or next window
	phase     Phase
	rec       Recorder

	completed int
}

// NewScheduler builds a scheduler for cfg using the default sample recorder
// and exporter.
func NewScheduler(cfg *Config, logger zerolog.Logger) *Scheduler {
	logger = logger.With().Str("component", "scheduler").Logger()
	return &Scheduler{
		cfg:         cfg,
		logger:      logger,
		newRecorder: NewSampleRecorder(cfg, logger),
		exporter:    NewExporter(cfg, logger),
	}
}

// NewSchedulerWith builds a scheduler with an explicit recorder factory and
// exporter.
func NewSchedulerWith(cfg *Config, factory RecorderFactory, exporter *Exporter, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cfg:         cfg,
		logger:      logger.With().Str("component", "scheduler").Logger(),
		newRecorder: factory,
		exporter:    exporter,
	}
}

// BeforeCall advances the call counter and performs any due transitions:
// closing a window whose end was reached (synchronously, before the call
// proceeds) and opening the next window whose start has arrived. Windows
// may be back-to-back; a close and the next open can happen on the same
// invocation.
func (s *Scheduler) BeforeCall() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.callIndex++
	index := s.callIndex

	if s.phase == PhaseRecording && index >= s.cfg.Ranges[s.window].End {
		s.closeWindowLocked()
	}

	for s.phase != PhaseRecording && s.window < len(s.cfg.Ranges) {
		w := s.cfg.Ranges[s.window]
		if index >= w.End {
			// Window fully elapsed before it could open; never recorded
			// retroactively.
			s.logger.Warn().Str("window", w.String()).Uint64("call_index", index).Msg("Window elapsed before recording armed, skipped")
			s.window++
			continue
		}
		if w.Contains(index) {
			s.openWindowLocked(w, index)
		}
		break
	}

	if s.phase == PhaseExported {
		s.phase = PhaseIdle
	}
}

// AfterCall feeds the finished call into the active recorder, if any.
func (s *Scheduler) AfterCall(elapsed time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase == PhaseRecording && s.rec != nil {
		s.rec.RecordCall(s.callIndex, elapsed, err != nil)
	}
}

// OnPanic closes an open scope without export so a propagating panic never
// leaks a running recorder. The interrupted window is consumed.
func (s *Scheduler) OnPanic(v interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.phase != PhaseRecording || s.rec == nil {
		return
	}

	w := s.cfg.Ranges[s.window]
	if _, err := s.rec.Stop(); err != nil {
		s.logger.Warn().Err(err).Str("window", w.String()).Msg("Recorder stop failed during panic unwind")
	}
	s.logger.Warn().
		Str("window", w.String()).
		Interface("panic", v).
		Msg("Recording aborted by panic in wrapped call, window discarded")

	s.rec = nil
	s.window++
	s.phase = PhaseIdle
}

func (s *Scheduler) openWindowLocked(w Range, index uint64) {
	rec := s.newRecorder(w)
	if err := rec.Start(); err != nil {
		s.logger.Warn().Err(err).Str("window", w.String()).Msg("Recorder start failed, window skipped")
		s.window++
		return
	}

	s.rec = rec
	s.phase = PhaseRecording
	s.logger.Info().
		Str("window", w.String()).
		Uint64("call_index", index).
		Msg("Recording started")
}

// closeWindowLocked stops the recorder, always logs the summary table, and
// hands the capture to the exporter.
func (s *Scheduler) closeWindowLocked() {
	w := s.cfg.Ranges[s.window]

	capture, err := s.rec.Stop()
	s.rec = nil
	s.window++
	s.completed++
	s.phase = PhaseExported

	if err != nil {
		s.logger.Warn().Err(err).Str("window", w.String()).Msg("Recorder stop failed, window discarded")
		return
	}

	s.logger.Info().
		Str("window", w.String()).
		Str("session", capture.SessionID).
		Msg("Recording stopped")
	s.logger.Info().Msg("Recorded activity summary:\n" + Summarize(capture).Table())

	// Export errors are already logged by the exporter; recording proceeds
	// regardless.
	_, _ = s.exporter.Export(capture)
}

// Phase returns the current phase.
func (s *Scheduler) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

// CallCount returns the number of calls observed so far.
func (s *Scheduler) CallCount() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callIndex
}

// CompletedWindows returns the number of windows recorded and closed.
func (s *Scheduler) CompletedWindows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}
