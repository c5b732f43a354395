package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportError(t *testing.T) {
	t.Parallel()
	cause := errors.New("connection refused")
	tests := []struct {
		name string
		err  *TransportError
		want string
	}{
		{
			name: "network failure",
			err:  &TransportError{Op: "getblockcount", Err: cause},
			want: "getblockcount: connection refused",
		},
		{
			name: "http status",
			err:  &TransportError{Op: "getblock", StatusCode: 503, Err: cause},
			want: "getblock: http status 503: connection refused",
		},
		{
			name: "rpc error",
			err:  &TransportError{Op: "getblock", StatusCode: 500, RPCCode: -8, Err: cause},
			want: "getblock: rpc error -8: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.err.Error())

			wrapped := fmt.Errorf("poll head: %w", tt.err)
			require.ErrorIs(t, wrapped, ErrTransport)
			require.ErrorIs(t, wrapped, cause)
			require.NotErrorIs(t, wrapped, ErrMalformedResponse)

			var te *TransportError
			require.ErrorAs(t, wrapped, &te)
			assert.Equal(t, tt.err.Op, te.Op)
		})
	}
}

func TestMalformedResponseError(t *testing.T) {
	t.Parallel()
	err := &MalformedResponseError{Op: "transactions", Detail: "missing transactions field"}
	assert.Equal(t, "transactions: malformed response: missing transactions field", err.Error())
	require.ErrorIs(t, err, ErrMalformedResponse)
	require.NotErrorIs(t, err, ErrTransport)

	cause := errors.New("unexpected EOF")
	err = &MalformedResponseError{Op: "getblock", Detail: "decode result", Err: cause}
	assert.Equal(t, "getblock: malformed response: decode result: unexpected EOF", err.Error())
	require.ErrorIs(t, err, cause)
}
