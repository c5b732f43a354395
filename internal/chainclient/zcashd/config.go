package zcashd

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the connection settings of a zcashd-compatible JSON-RPC node.
type Config struct {
	URL      string        `env:"ZCASHD_RPC_URL" envDefault:"http://127.0.0.1:8232"`
	Username string        `env:"ZCASHD_RPC_USER" envDefault:""`
	Password string        `env:"ZCASHD_RPC_PASSWORD" envDefault:""`
	Timeout  time.Duration `env:"ZCASHD_RPC_TIMEOUT" envDefault:"15s"`
	// MaxBatch caps the number of calls sent in one JSON-RPC batch.
	MaxBatch int `env:"ZCASHD_RPC_MAX_BATCH" envDefault:"100"`
}

// LoadConfig loads the node configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse zcashd config: %w", err)
	}
	return cfg, nil
}
