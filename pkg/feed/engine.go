package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zecdev/chainfeed/pkg/metrics"
	"github.com/zecdev/chainfeed/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultBlockWindowSize       = 7
	DefaultTransactionWindowSize = 10
)

// Option configures an Engine.
type Option func(*options)

type options struct {
	windowSize int
	metrics    *metrics.Metrics
}

// WithWindowSize sets the number of items requested by Initialize and by each
// head page. It is also the default ExtendTail count.
func WithWindowSize(n int) Option {
	return func(o *options) {
		o.windowSize = n
	}
}

// WithMetrics enables metrics collection for the engine.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// Engine keeps one Window in sync with its data source.
type Engine[T any] struct {
	log      *zap.SugaredLogger
	name     string
	strategy Strategy[T]
	size     int
	metrics  *metrics.Metrics // nil if metrics disabled
	now      func() time.Time

	// Single-flight per direction; a failed TryAcquire drops the call.
	headSem *semaphore.Weighted
	tailSem *semaphore.Weighted

	// Change signal; buffered (size 1) to coalesce notifications.
	updates chan struct{}

	mu           sync.Mutex
	window       *Window[T]
	ready        bool
	initializing bool
	closed       bool
	headBusy     bool
	tailBusy     bool
	hasMore      bool
	lastHeadSync time.Time
	headErr      error
	tailErr      error
}

// NewEngine creates an Engine and returns an error if arguments are invalid.
func NewEngine[T any](log *zap.SugaredLogger, name string, strategy Strategy[T], opts ...Option) (*Engine[T], error) {
	if log == nil {
		return nil, errors.New("invalid logger: must not be nil")
	}
	if name == "" {
		return nil, errors.New("invalid name: must not be empty")
	}
	if strategy == nil {
		return nil, errors.New("invalid strategy: must not be nil")
	}

	o := options{windowSize: DefaultBlockWindowSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.windowSize <= 0 {
		return nil, errors.New("invalid window size: must be greater than 0")
	}

	return &Engine[T]{
		log:      log.With("feed", name),
		name:     name,
		strategy: strategy,
		size:     o.windowSize,
		metrics:  o.metrics,
		now:      time.Now,
		headSem:  semaphore.NewWeighted(1),
		tailSem:  semaphore.NewWeighted(1),
		updates:  make(chan struct{}, 1),
		window:   NewWindow[T](),
	}, nil
}

// Name returns the feed name used in logs and metrics.
func (e *Engine[T]) Name() string {
	return e.name
}

// WindowSize returns the configured initial window size.
func (e *Engine[T]) WindowSize() int {
	return e.size
}

// Initialize loads the newest window and makes the engine Ready. It is a no-op
// when already Ready. On failure nothing is kept and the call can be retried.
func (e *Engine[T]) Initialize(ctx context.Context) error {
	e.mu.Lock()
	switch {
	case e.closed:
		e.mu.Unlock()
		return ErrClosed
	case e.ready:
		e.mu.Unlock()
		return nil
	case e.initializing:
		e.mu.Unlock()
		return ErrInFlight
	}
	e.initializing = true
	e.mu.Unlock()

	items, err := e.strategy.FetchInitial(ctx, e.size)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.initializing = false

	if e.closed {
		e.record(OpInitialize, StatusDiscarded, len(items), 0)
		return ErrClosed
	}
	if err != nil {
		e.record(OpInitialize, StatusFailed, 0, 0)
		e.metrics.IncError(errType(err))
		return fmt.Errorf("initialize %s feed: %w", e.name, err)
	}

	added := e.window.Merge(e.strategy.Place(e.window, items, Head), Head)
	e.strategy.Advance(OpInitialize, added)
	e.hasMore = e.strategy.HasMore(e.window.Boundaries(), OpInitialize, added)
	e.ready = true
	e.lastHeadSync = e.now()
	e.record(OpInitialize, mergeStatus(added), len(items), added)
	e.notify()

	b := e.window.Boundaries()
	e.log.Infow("feed initialized", "items", e.window.Len(), "highest", b.Highest, "lowest", b.Lowest)
	return nil
}

// PollHead merges items newer than the current head. A call made while another
// PollHead is in flight returns StatusSkipped immediately.
func (e *Engine[T]) PollHead(ctx context.Context) Result {
	if !e.headSem.TryAcquire(1) {
		e.log.Debugw("head poll skipped: already in flight")
		return e.skipped(OpPollHead)
	}
	defer e.headSem.Release(1)

	b, err := e.begin(OpPollHead)
	if err != nil {
		return e.rejected(OpPollHead, err)
	}
	items, err := e.strategy.FetchHead(ctx, b, e.size)
	return e.complete(OpPollHead, items, err)
}

// ExtendTail appends up to count items older than the current tail. A count
// of zero or less uses the window size.
func (e *Engine[T]) ExtendTail(ctx context.Context, count int) Result {
	if count <= 0 {
		count = e.size
	}
	if !e.tailSem.TryAcquire(1) {
		e.log.Debugw("tail extension skipped: already in flight")
		return e.skipped(OpExtendTail)
	}
	defer e.tailSem.Release(1)

	b, err := e.begin(OpExtendTail)
	if err != nil {
		return e.rejected(OpExtendTail, err)
	}
	items, err := e.strategy.FetchTail(ctx, b, count)
	return e.complete(OpExtendTail, items, err)
}

// begin marks op in flight and returns the cursors it may fetch against.
func (e *Engine[T]) begin(op Op) (Boundaries, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return Boundaries{}, ErrClosed
	}
	if !e.ready {
		return Boundaries{}, ErrNotInitialized
	}
	e.setBusy(op, true)
	return e.window.Boundaries(), nil
}

func (e *Engine[T]) complete(op Op, items []T, fetchErr error) Result {
	dir := op.Direction()

	e.mu.Lock()
	defer e.mu.Unlock()
	e.setBusy(op, false)

	res := Result{Direction: dir, Fetched: len(items), HasMore: e.hasMore}
	if e.closed {
		res.Status = StatusDiscarded
		e.record(op, res.Status, res.Fetched, 0)
		e.log.Debugw("response discarded: feed closed", "op", op.String(), "fetched", res.Fetched)
		return res
	}
	if fetchErr != nil {
		res.Status = StatusFailed
		res.Fetched = 0
		res.Err = fetchErr
		e.setErr(op, fetchErr)
		e.record(op, res.Status, 0, 0)
		e.metrics.IncError(errType(fetchErr))
		e.log.Warnw("feed sync failed", "op", op.String(), "error", fetchErr)
		return res
	}

	// A head poll that fills a window left empty by Initialize seeds it the
	// same way Initialize would have.
	seeding := op == OpPollHead && !e.window.Boundaries().Known

	added := e.window.Merge(e.strategy.Place(e.window, items, dir), dir)
	switch {
	case seeding && added > 0:
		e.strategy.Advance(OpInitialize, added)
		e.hasMore = e.strategy.HasMore(e.window.Boundaries(), OpInitialize, added)
	case op == OpExtendTail:
		e.strategy.Advance(op, added)
		e.hasMore = e.strategy.HasMore(e.window.Boundaries(), op, added)
	default:
		e.strategy.Advance(op, added)
	}
	if op == OpPollHead {
		e.lastHeadSync = e.now()
	}
	e.setErr(op, nil)

	res.Added = added
	res.HasMore = e.hasMore
	res.Status = mergeStatus(added)
	e.record(op, res.Status, res.Fetched, added)
	if added > 0 {
		e.notify()
	}
	return res
}

func (e *Engine[T]) skipped(op Op) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(op, StatusSkipped, 0, 0)
	return Result{Direction: op.Direction(), Status: StatusSkipped, HasMore: e.hasMore}
}

func (e *Engine[T]) rejected(op Op, err error) Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.record(op, StatusFailed, 0, 0)
	e.metrics.IncError(errType(err))
	return Result{Direction: op.Direction(), Status: StatusFailed, HasMore: e.hasMore, Err: err}
}

func (e *Engine[T]) setBusy(op Op, busy bool) {
	if op == OpExtendTail {
		e.tailBusy = busy
	} else {
		e.headBusy = busy
	}
}

func (e *Engine[T]) setErr(op Op, err error) {
	if op == OpExtendTail {
		e.tailErr = err
	} else {
		e.headErr = err
	}
}

// record must be called with mu held.
func (e *Engine[T]) record(op Op, status Status, fetched, added int) {
	e.metrics.RecordSync(e.name, op.String(), op.Direction().String(), status.String(), fetched, added)
	b := e.window.Boundaries()
	e.metrics.UpdateWindowMetrics(e.name, b.Highest, b.Lowest, e.window.Len())
}

// notify must be called with mu held so it never races Close.
func (e *Engine[T]) notify() {
	select {
	case e.updates <- struct{}{}:
	default:
	}
}

// Close marks the engine as no longer current. Responses still in flight are
// discarded and further operations fail with ErrClosed. Close is idempotent.
func (e *Engine[T]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.updates)
}

// Updates returns a channel signalled after every merge that added items. It
// is closed by Close.
func (e *Engine[T]) Updates() <-chan struct{} {
	return e.updates
}

// State returns the current engine state.
func (e *Engine[T]) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stateLocked()
}

func (e *Engine[T]) stateLocked() State {
	return State{
		Feed:         e.name,
		Phase:        e.phaseLocked(),
		HeadInFlight: e.headBusy,
		TailInFlight: e.tailBusy,
		Boundaries:   e.window.Boundaries(),
		HasMore:      e.hasMore,
		Len:          e.window.Len(),
		LastHeadSync: e.lastHeadSync,
		HeadErr:      e.headErr,
		TailErr:      e.tailErr,
	}
}

func (e *Engine[T]) phaseLocked() Phase {
	switch {
	case e.closed:
		return PhaseClosed
	case !e.ready:
		return PhaseUninitialized
	case e.headBusy:
		return PhasePolling
	case e.tailBusy:
		return PhaseExtending
	default:
		return PhaseReady
	}
}

// Snapshot returns the cached items, newest first, together with the state
// they were read under.
func (e *Engine[T]) Snapshot() Snapshot[T] {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Snapshot[T]{Items: e.window.Items(), State: e.stateLocked()}
}

func mergeStatus(added int) Status {
	if added > 0 {
		return StatusMerged
	}
	return StatusNoOp
}

func errType(err error) string {
	switch {
	case errors.Is(err, types.ErrTransport):
		return metrics.ErrTypeTransport
	case errors.Is(err, types.ErrMalformedResponse):
		return metrics.ErrTypeMalformedResponse
	case errors.Is(err, ErrNotInitialized):
		return metrics.ErrTypeNotInitialized
	default:
		return metrics.ErrTypeOther
	}
}
