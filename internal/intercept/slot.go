// Package intercept implements the interception mechanism: wrappable method
// slots and a module-load observer registry.
//
// A Slot is an explicit, swappable function pointer standing in for a hot-path
// method. Workload modules expose their hot path through a Slot; periscope
// attaches observers to it without the workload changing its call sites.
package intercept

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrAlreadyObserved is returned when an observer key is installed twice on
// the same slot. Installation is idempotent: the first observer stays, later
// attempts are rejected without stacking wrappers.
var ErrAlreadyObserved = errors.New("intercept: observer key already installed")

// CallObserver receives call boundary notifications from an observed slot.
type CallObserver interface {
	// BeforeCall runs before the wrapped function, in the caller's goroutine.
	BeforeCall()

	// AfterCall runs after the wrapped function returns, with the call's
	// elapsed wall time and its error (nil on success).
	AfterCall(elapsed time.Duration, err error)

	// OnPanic runs when the wrapped function panics, before the panic is
	// rethrown to the caller.
	OnPanic(v interface{})
}

// WrapPoint is the type-erased view of a Slot. It lets callers install
// observers without knowing the slot's request/response types.
type WrapPoint interface {
	// Observe installs obs under key. Installing the same key twice returns
	// ErrAlreadyObserved and leaves the existing observer in place.
	Observe(key string, obs CallObserver) error

	// Observed reports whether an observer is installed under key.
	Observed(key string) bool
}

// Slot holds the current implementation of a wrappable method.
type Slot[Req, Resp any] struct {
	mu   sync.Mutex
	fn   func(context.Context, Req) (Resp, error)
	keys map[string]struct{}
}

// NewSlot creates a slot around fn.
func NewSlot[Req, Resp any](fn func(context.Context, Req) (Resp, error)) *Slot[Req, Resp] {
	return &Slot[Req, Resp]{
		fn:   fn,
		keys: make(map[string]struct{}),
	}
}

// Invoke calls the slot's current function. The lock is held only to read
// the function pointer, never across the call itself.
func (s *Slot[Req, Resp]) Invoke(ctx context.Context, req Req) (Resp, error) {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	return fn(ctx, req)
}

// Wrap replaces the slot's function with mw(current) under an idempotency
// key. The same key never wraps twice.
func (s *Slot[Req, Resp]) Wrap(key string, mw func(next func(context.Context, Req) (Resp, error)) func(context.Context, Req) (Resp, error)) error {
	if mw == nil {
		return fmt.Errorf("intercept: nil middleware for key %q", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.keys[key]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyObserved, key)
	}
	s.keys[key] = struct{}{}
	s.fn = mw(s.fn)
	return nil
}

// Observe installs a call observer. The generated wrapper preserves the
// wrapped function's arguments, return values and panics exactly; the
// observer is told about each call's boundaries and outcome.
func (s *Slot[Req, Resp]) Observe(key string, obs CallObserver) error {
	if obs == nil {
		return fmt.Errorf("intercept: nil observer for key %q", key)
	}

	return s.Wrap(key, func(next func(context.Context, Req) (Resp, error)) func(context.Context, Req) (Resp, error) {
		return func(ctx context.Context, req Req) (resp Resp, err error) {
			obs.BeforeCall()
			start := time.Now()
			defer func() {
				if r := recover(); r != nil {
					obs.OnPanic(r)
					panic(r)
				}
			}()
			resp, err = next(ctx, req)
			obs.AfterCall(time.Since(start), err)
			return resp, err
		}
	})
}

// Observed reports whether an observer or middleware is installed under key.
func (s *Slot[Req, Resp]) Observed(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.keys[key]
	return ok
}
