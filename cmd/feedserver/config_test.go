package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

// runBuildConfig parses args with the run flags and returns the built config.
func runBuildConfig(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	var (
		cfg *Config
		err error
	)
	app := &cli.App{
		Name: "feedserver",
		Commands: []*cli.Command{{
			Name:  "run",
			Flags: runFlags(),
			Action: func(c *cli.Context) error {
				cfg, err = buildConfig(c)
				return nil
			},
		}},
	}
	require.NoError(t, app.Run(append([]string{"feedserver", "run"}, args...)))
	return cfg, err
}

func TestBuildConfig_Defaults(t *testing.T) {
	t.Setenv("ZCASHD_RPC_URL", "http://node:8232")

	cfg, err := runBuildConfig(t)
	require.NoError(t, err)
	assert.Equal(t, "main", cfg.Network)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 7, cfg.BlockWindowSize)
	assert.Equal(t, 10, cfg.TxWindowSize)
	assert.Empty(t, cfg.TxType)
	assert.Equal(t, "http://node:8232", cfg.Zcashd.URL)
	assert.Equal(t, "http://127.0.0.1:3001", cfg.Zindex.URL)
	assert.Equal(t, ":8080", cfg.APIAddr())
	assert.Equal(t, ":9090", cfg.MetricsAddr())
	assert.Equal(t, "*", cfg.CORSOrigins)
}

func TestBuildConfig_FlagsAndEnv(t *testing.T) {
	t.Setenv("TX_TYPE", " Coinbase ")
	t.Setenv("METRICS_HOST", "127.0.0.1")

	cfg, err := runBuildConfig(t,
		"--poll-interval", "3s",
		"--block-window-size", "12",
		"--api-host", "localhost",
		"--api-port", "8181",
		"--environment", "staging",
	)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.Equal(t, 12, cfg.BlockWindowSize)
	assert.Equal(t, "coinbase", cfg.TxType)
	assert.Equal(t, "localhost:8181", cfg.APIAddr())
	assert.Equal(t, "127.0.0.1:9090", cfg.MetricsAddr())
	assert.Equal(t, "staging", cfg.Environment)
}

func TestBuildConfig_AllTypes(t *testing.T) {
	cfg, err := runBuildConfig(t, "--tx-type", "all")
	require.NoError(t, err)
	assert.Empty(t, cfg.TxType)
}

func TestBuildConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "zero poll interval", args: []string{"--poll-interval", "0s"}, want: "poll-interval must be greater than 0"},
		{name: "zero block window", args: []string{"--block-window-size", "0"}, want: "block-window-size must be greater than 0"},
		{name: "negative tx window", args: []string{"--tx-window-size", "-1"}, want: "tx-window-size must be greater than 0"},
		{name: "unknown tx type", args: []string{"--tx-type", "shielded"}, want: "invalid transaction kind"},
		{name: "max age below poll interval", args: []string{"--stale-watchdog-max-age", "1s"}, want: "stale-watchdog-max-age"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runBuildConfig(t, tt.args...)
			require.ErrorContains(t, err, tt.want)
		})
	}
}

func TestBuildConfig_InvalidEnv(t *testing.T) {
	t.Setenv("ZINDEX_TIMEOUT", "soon")

	_, err := runBuildConfig(t)
	require.ErrorContains(t, err, "failed to load zindex config")
}
