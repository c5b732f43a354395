package feed

import "errors"

var (
	// ErrNotInitialized is returned by PollHead and ExtendTail before Initialize succeeded.
	ErrNotInitialized = errors.New("feed not initialized")
	// ErrInFlight is returned by Initialize while another Initialize is running.
	ErrInFlight = errors.New("feed initialization in flight")
	// ErrClosed is returned once the engine has been closed.
	ErrClosed = errors.New("feed closed")
)
