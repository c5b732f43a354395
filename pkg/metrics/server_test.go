package metrics

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestNewServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	server := NewServer(":0", reg, nil) // :0 lets OS pick available port

	require.NotNil(t, server)
	require.NotNil(t, server.httpServer)
	require.Equal(t, ":0", server.httpServer.Addr)
}

func httpGet(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return http.DefaultClient.Do(req)
}

func startServer(t *testing.T, addr string, reg *prometheus.Registry, ready ReadyFunc) {
	t.Helper()

	server := NewServer(addr, reg, ready)
	errCh := server.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
		<-errCh
	})

	// Give server time to start
	time.Sleep(50 * time.Millisecond)
}

func TestServer_StartAndShutdown(t *testing.T) {
	reg := prometheus.NewRegistry()

	_, err := New(reg)
	require.NoError(t, err)

	server := NewServer("127.0.0.1:19190", reg, nil)
	errCh := server.Start()

	time.Sleep(50 * time.Millisecond)

	resp, err := httpGet(t.Context(), "http://127.0.0.1:19190/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ok", string(body))

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	err = server.Shutdown(ctx)
	require.NoError(t, err)

	select {
	case err := <-errCh:
		require.NoError(t, err)
	default:
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()

	m, err := New(reg)
	require.NoError(t, err)

	m.UpdateWindowMetrics("blocks", 200, 100, 100)
	m.IncError(ErrTypeTransport)

	startServer(t, "127.0.0.1:19191", reg, nil)

	resp, err := httpGet(t.Context(), "http://127.0.0.1:19191/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	bodyStr := string(body)
	require.Contains(t, bodyStr, "chainfeed_feed_lowest")
	require.Contains(t, bodyStr, "chainfeed_feed_highest")
	require.Contains(t, bodyStr, "chainfeed_errors_total")
}

func TestServer_ReadyEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()

	var ready atomic.Bool
	startServer(t, "127.0.0.1:19192", reg, ready.Load)

	resp, err := httpGet(t.Context(), "http://127.0.0.1:19192/ready")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	ready.Store(true)

	resp, err = httpGet(t.Context(), "http://127.0.0.1:19192/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "ready", string(body))
}

func TestServer_ReadyEndpoint_NilFunc(t *testing.T) {
	reg := prometheus.NewRegistry()
	startServer(t, "127.0.0.1:19193", reg, nil)

	resp, err := httpGet(t.Context(), "http://127.0.0.1:19193/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
