package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/zecdev/chainfeed/pkg/scheduler"
	"go.uber.org/zap"
)

// Factory builds a fresh engine for a filter value.
type Factory[T any] func(filter string) (*Engine[T], error)

// Session owns the current engine of a filterable feed and the scheduler that
// polls it. Switching the filter discards the old window entirely.
type Session[T any] struct {
	log      *zap.SugaredLogger
	factory  Factory[T]
	interval time.Duration
	baseCtx  context.Context

	// Serializes Switch and Close.
	switchMu sync.Mutex

	mu     sync.Mutex
	filter string
	engine *Engine[T]
	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// NewSession creates a session. Schedulers started by the session live at most
// as long as ctx.
func NewSession[T any](
	ctx context.Context,
	log *zap.SugaredLogger,
	factory Factory[T],
	interval time.Duration,
) (*Session[T], error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if factory == nil {
		return nil, errors.New("invalid factory: must not be nil")
	}
	if interval <= 0 {
		return nil, errors.New("invalid interval: must be greater than 0")
	}
	return &Session[T]{
		log:      log,
		factory:  factory,
		interval: interval,
		baseCtx:  ctx,
	}, nil
}

// Switch makes filter the active one and returns its engine. Switching to the
// active filter returns the current engine, retrying Initialize if an earlier
// attempt failed. Otherwise the current engine is closed, its scheduler is
// stopped, and a fresh engine is initialized.
//
// When Initialize fails the new engine still becomes current so the caller can
// retry with another Switch.
func (s *Session[T]) Switch(ctx context.Context, filter string) (*Engine[T], error) {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()
	return s.switchLocked(ctx, filter)
}

// Resume brings the session up with filter unless a filter is already active,
// in which case the active engine is initialized again if needed.
func (s *Session[T]) Resume(ctx context.Context, filter string) (*Engine[T], error) {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.mu.Lock()
	if s.engine != nil {
		filter = s.filter
	}
	s.mu.Unlock()
	return s.switchLocked(ctx, filter)
}

// switchLocked must be called with switchMu held.
func (s *Session[T]) switchLocked(ctx context.Context, filter string) (*Engine[T], error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	current, currentFilter := s.engine, s.filter
	s.mu.Unlock()

	if current != nil && currentFilter == filter {
		if current.State().Phase.Ready() {
			return current, nil
		}
		return current, s.start(ctx, current)
	}

	s.stop()

	e, err := s.factory(filter)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.engine, s.filter = e, filter
	s.mu.Unlock()

	s.log.Infow("feed filter switched", "feed", e.Name(), "filter", filter)
	return e, s.start(ctx, e)
}

// start initializes e and launches its scheduler.
func (s *Session[T]) start(ctx context.Context, e *Engine[T]) error {
	if err := e.Initialize(ctx); err != nil {
		return err
	}

	pollCtx, cancel := context.WithCancel(s.baseCtx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		err := scheduler.Start(pollCtx, s.log, e.Name(), func(ctx context.Context) {
			e.PollHead(ctx)
		}, s.interval)
		if err != nil {
			s.log.Errorw("poll scheduler failed", "feed", e.Name(), "error", err)
		}
	}()

	s.mu.Lock()
	s.cancel, s.done = cancel, done
	s.mu.Unlock()
	return nil
}

// stop closes the current engine and waits for its scheduler to exit.
func (s *Session[T]) stop() {
	s.mu.Lock()
	e, cancel, done := s.engine, s.cancel, s.done
	s.engine, s.cancel, s.done, s.filter = nil, nil, nil, ""
	s.mu.Unlock()

	if e != nil {
		e.Close()
	}
	if cancel != nil {
		cancel()
		<-done
	}
}

// Current returns the active engine, or nil before the first Switch.
func (s *Session[T]) Current() *Engine[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

// Filter returns the active filter value.
func (s *Session[T]) Filter() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filter
}

// State returns the state of the active engine. Before the first Switch it
// reports an uninitialized feed.
func (s *Session[T]) State() State {
	if e := s.Current(); e != nil {
		return e.State()
	}
	return State{Phase: PhaseUninitialized}
}

// Close stops the active engine and its scheduler. Later calls to Switch fail
// with ErrClosed.
func (s *Session[T]) Close() {
	s.switchMu.Lock()
	defer s.switchMu.Unlock()

	s.stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
