package feed

import "time"

// Direction is the end of the window an operation writes to.
type Direction int

const (
	Head Direction = iota
	Tail
)

func (d Direction) String() string {
	if d == Tail {
		return "tail"
	}
	return "head"
}

// Op identifies an engine operation.
type Op int

const (
	OpInitialize Op = iota
	OpPollHead
	OpExtendTail
)

// Direction returns the end of the window the operation merges into.
func (o Op) Direction() Direction {
	if o == OpExtendTail {
		return Tail
	}
	return Head
}

func (o Op) String() string {
	switch o {
	case OpInitialize:
		return "initialize"
	case OpPollHead:
		return "poll_head"
	case OpExtendTail:
		return "extend_tail"
	default:
		return "unknown"
	}
}

// Status is the outcome of a PollHead or ExtendTail call.
type Status int

const (
	// StatusMerged means at least one new item was added to the window.
	StatusMerged Status = iota
	// StatusNoOp means the call completed but added nothing (no gap, exhausted tail, all duplicates).
	StatusNoOp
	// StatusSkipped means another call in the same direction was in flight.
	StatusSkipped
	// StatusFailed means the call failed; Result.Err holds the cause.
	StatusFailed
	// StatusDiscarded means the engine was closed before the response could be merged.
	StatusDiscarded
)

func (s Status) String() string {
	switch s {
	case StatusMerged:
		return "merged"
	case StatusNoOp:
		return "noop"
	case StatusSkipped:
		return "skipped"
	case StatusFailed:
		return "failed"
	case StatusDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Result reports the outcome of one PollHead or ExtendTail call.
type Result struct {
	Direction Direction
	Status    Status
	Fetched   int  // items returned by the data source
	Added     int  // items that survived deduplication
	HasMore   bool // whether the tail can be extended further
	Err       error
}

// Phase is the lifecycle phase of an Engine.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseReady
	PhasePolling
	PhaseExtending
	PhaseClosed
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseReady:
		return "ready"
	case PhasePolling:
		return "polling"
	case PhaseExtending:
		return "extending"
	case PhaseClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Ready reports whether the engine has been initialized and not closed.
func (p Phase) Ready() bool {
	return p == PhaseReady || p == PhasePolling || p == PhaseExtending
}

// State is a point-in-time view of an engine.
type State struct {
	Feed         string
	Phase        Phase
	HeadInFlight bool
	TailInFlight bool
	Boundaries   Boundaries
	HasMore      bool
	Len          int
	LastHeadSync time.Time
	HeadErr      error
	TailErr      error
}

// Snapshot is the window contents together with the engine state.
type Snapshot[T any] struct {
	Items []Entry[T]
	State State
}
