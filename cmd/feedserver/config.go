package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/zecdev/chainfeed/internal/chainclient/zcashd"
	"github.com/zecdev/chainfeed/internal/chainclient/zindex"
)

// Config holds all configuration for the feedserver application
type Config struct {
	// Application settings
	Verbose bool
	Network string

	// Feed settings
	PollInterval      time.Duration
	BlockWindowSize   int
	TxWindowSize      int
	TxType            string
	InitRetryInterval time.Duration

	// Watchdog settings
	StaleWatchdogInterval time.Duration
	StaleWatchdogMaxAge   time.Duration

	// Data sources, loaded from ZCASHD_* and ZINDEX_* environment variables
	Zcashd zcashd.Config
	Zindex zindex.Config

	// API settings
	APIHost     string
	APIPort     int
	CORSOrigins string

	// Metrics settings
	MetricsHost   string
	MetricsPort   int
	Environment   string
	Region        string
	CloudProvider string
}

// MetricsAddr returns the formatted metrics address
func (c *Config) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.MetricsHost, c.MetricsPort)
}

// APIAddr returns the formatted API address
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}

// buildConfig builds a Config from CLI context flags
func buildConfig(c *cli.Context) (*Config, error) {
	zcashdCfg, err := zcashd.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load zcashd config: %w", err)
	}
	zindexCfg, err := zindex.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load zindex config: %w", err)
	}

	cfg := &Config{
		Verbose:               c.Bool("verbose"),
		Network:               c.String("network"),
		PollInterval:          c.Duration("poll-interval"),
		BlockWindowSize:       c.Int("block-window-size"),
		TxWindowSize:          c.Int("tx-window-size"),
		TxType:                c.String("tx-type"),
		InitRetryInterval:     c.Duration("init-retry-interval"),
		StaleWatchdogInterval: c.Duration("stale-watchdog-interval"),
		StaleWatchdogMaxAge:   c.Duration("stale-watchdog-max-age"),
		Zcashd:                zcashdCfg,
		Zindex:                zindexCfg,
		APIHost:               c.String("api-host"),
		APIPort:               c.Int("api-port"),
		CORSOrigins:           c.String("cors-origins"),
		MetricsHost:           c.String("metrics-host"),
		MetricsPort:           c.Int("metrics-port"),
		Environment:           c.String("environment"),
		Region:                c.String("region"),
		CloudProvider:         c.String("cloud-provider"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks flag values and normalizes the transaction type filter.
func (c *Config) validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll-interval must be greater than 0"))
	}
	if c.BlockWindowSize <= 0 {
		errs = append(errs, fmt.Errorf("block-window-size must be greater than 0, got %d", c.BlockWindowSize))
	}
	if c.TxWindowSize <= 0 {
		errs = append(errs, fmt.Errorf("tx-window-size must be greater than 0, got %d", c.TxWindowSize))
	}
	if c.InitRetryInterval <= 0 {
		errs = append(errs, errors.New("init-retry-interval must be greater than 0"))
	}
	if c.StaleWatchdogInterval <= 0 {
		errs = append(errs, errors.New("stale-watchdog-interval must be greater than 0"))
	}
	if c.StaleWatchdogMaxAge < c.PollInterval {
		errs = append(errs, errors.New("stale-watchdog-max-age must not be shorter than poll-interval"))
	}
	if filter, err := parseFilter(c.TxType); err != nil {
		errs = append(errs, fmt.Errorf("tx-type: %w", err))
	} else {
		c.TxType = filter
	}
	return errors.Join(errs...)
}
