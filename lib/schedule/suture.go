package schedule

import (
	"context"
	"fmt"
	"sync"
)

// Service wraps a plain context-aware run function as a thejerf/suture
// Service (Serve(ctx context.Context) error), so the demo binary's
// scheduler pump can live under a suture.Supervisor alongside the rest of
// its long-running pieces.
//
// Adapted from the teacher's suturewrap package: only its test was
// retrieved, so this is re-derived from the test's observable contract — a
// named service wrapping a func(ctx), with Stop panicking if called more
// than once (a double-stop indicates a bug in the caller, not a condition
// to swallow).
type Service struct {
	fn   func(ctx context.Context)
	name string

	// ctx/cancel are wired up eagerly in AsService, not in Serve, so Stop
	// is always safe to call concurrently with the goroutine that calls
	// Serve (Serve's own ctx argument is merged in via a watcher goroutine).
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	stopped bool
}

// AsService wraps fn as a named suture.Service.
func AsService(fn func(ctx context.Context), name string) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{fn: fn, name: name, ctx: ctx, cancel: cancel, done: make(chan struct{})}
}

func (s *Service) Serve(parent context.Context) error {
	go func() {
		select {
		case <-parent.Done():
			s.cancel()
		case <-s.ctx.Done():
		}
	}()

	defer close(s.done)
	s.fn(s.ctx)
	return nil
}

// Stop cancels the running service and waits for Serve to return. It
// panics if called more than once, since a double-stop indicates a caller
// bug rather than a recoverable race.
func (s *Service) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		panic(fmt.Sprintf("schedule: Stop called twice on service %q", s.name))
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	<-s.done
}

func (s *Service) String() string { return s.name }
