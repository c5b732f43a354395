package main

import (
	"time"

	"github.com/urfave/cli/v2"
)

// runFlags returns all CLI flags for the feedserver run command
func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"v"},
			Usage:   "Enable verbose logging",
			EnvVars: []string{"VERBOSE"},
			Value:   false,
		},
		&cli.StringFlag{
			Name:    "network",
			Aliases: []string{"n"},
			Usage:   "Chain network served by the data sources (e.g., 'main', 'test')",
			EnvVars: []string{"NETWORK"},
			Value:   "main",
		},
		&cli.DurationFlag{
			Name:    "poll-interval",
			Aliases: []string{"p"},
			Usage:   "Interval between head polls of each feed",
			EnvVars: []string{"POLL_INTERVAL"},
			Value:   10 * time.Second,
		},
		&cli.IntFlag{
			Name:    "block-window-size",
			Usage:   "Number of blocks loaded initially and per load-more",
			EnvVars: []string{"BLOCK_WINDOW_SIZE"},
			Value:   7,
		},
		&cli.IntFlag{
			Name:    "tx-window-size",
			Usage:   "Number of transactions loaded initially and per load-more",
			EnvVars: []string{"TX_WINDOW_SIZE"},
			Value:   10,
		},
		&cli.StringFlag{
			Name:    "tx-type",
			Usage:   "Initial transaction type filter (coinbase, tze, standard); empty or 'all' for every type",
			EnvVars: []string{"TX_TYPE"},
		},
		&cli.DurationFlag{
			Name:    "init-retry-interval",
			Usage:   "Delay between attempts to initialize a feed whose data source is unavailable",
			EnvVars: []string{"INIT_RETRY_INTERVAL"},
			Value:   5 * time.Second,
		},
		&cli.DurationFlag{
			Name:    "stale-watchdog-interval",
			Usage:   "Interval for checking whether feed heads are being refreshed",
			EnvVars: []string{"STALE_WATCHDOG_INTERVAL"},
			Value:   30 * time.Second,
		},
		&cli.DurationFlag{
			Name:    "stale-watchdog-max-age",
			Usage:   "Warn when a feed head has not been refreshed for longer than this",
			EnvVars: []string{"STALE_WATCHDOG_MAX_AGE"},
			Value:   2 * time.Minute,
		},
		&cli.StringFlag{
			Name:    "api-host",
			Usage:   "Host for the feed API server (empty for all interfaces)",
			EnvVars: []string{"API_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "api-port",
			Usage:   "Port for the feed API server",
			EnvVars: []string{"API_PORT"},
			Value:   8080,
		},
		&cli.StringFlag{
			Name:    "cors-origins",
			Usage:   "Comma-separated origins allowed to call the feed API",
			EnvVars: []string{"CORS_ORIGINS"},
			Value:   "*",
		},
		&cli.StringFlag{
			Name:    "metrics-host",
			Usage:   "Host for Prometheus metrics server (empty for all interfaces)",
			EnvVars: []string{"METRICS_HOST"},
			Value:   "",
		},
		&cli.IntFlag{
			Name:    "metrics-port",
			Aliases: []string{"m"},
			Usage:   "Port for Prometheus metrics server",
			EnvVars: []string{"METRICS_PORT"},
			Value:   9090,
		},
		&cli.StringFlag{
			Name:    "environment",
			Aliases: []string{"E"},
			Usage:   "Deployment environment for metrics labels (e.g., 'production', 'staging')",
			EnvVars: []string{"ENVIRONMENT"},
			Value:   "",
		},
		&cli.StringFlag{
			Name:    "region",
			Aliases: []string{"R"},
			Usage:   "Cloud region for metrics labels (e.g., 'us-east-1')",
			EnvVars: []string{"REGION"},
			Value:   "",
		},
		&cli.StringFlag{
			Name:    "cloud-provider",
			Aliases: []string{"P"},
			Usage:   "Cloud provider for metrics labels (e.g., 'aws', 'oci', 'gcp')",
			EnvVars: []string{"CLOUD_PROVIDER"},
			Value:   "",
		},
	}
}
