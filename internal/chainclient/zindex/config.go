package zindex

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the settings of the transaction indexing API.
type Config struct {
	URL     string        `env:"ZINDEX_URL" envDefault:"http://127.0.0.1:3001"`
	Timeout time.Duration `env:"ZINDEX_TIMEOUT" envDefault:"15s"`
	// MaxPageSize caps the limit sent with a single page request.
	MaxPageSize int `env:"ZINDEX_MAX_PAGE_SIZE" envDefault:"100"`
}

// LoadConfig loads the indexer configuration from environment variables.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse zindex config: %w", err)
	}
	return cfg, nil
}
