package types

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport is matched by every *TransportError via errors.Is.
	ErrTransport = errors.New("transport failure")
	// ErrMalformedResponse is matched by every *MalformedResponseError via errors.Is.
	ErrMalformedResponse = errors.New("malformed response")
)

// TransportError reports a network, HTTP or RPC-level failure while talking to a
// chain data source.
type TransportError struct {
	Op         string // operation, e.g. "getblockcount"
	StatusCode int    // HTTP status, 0 if the request never completed
	RPCCode    int    // JSON-RPC error code, 0 if not an RPC error
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.RPCCode != 0:
		return fmt.Sprintf("%s: rpc error %d: %v", e.Op, e.RPCCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: http status %d: %v", e.Op, e.StatusCode, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// MalformedResponseError reports a payload whose shape does not match what the
// caller expected.
type MalformedResponseError struct {
	Op     string
	Detail string
	Err    error
}

func (e *MalformedResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: malformed response: %s: %v", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Detail)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

func (e *MalformedResponseError) Is(target error) bool { return target == ErrMalformedResponse }
