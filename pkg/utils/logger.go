package utils

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ServiceName tags every log line written by NewSugaredLogger.
const ServiceName = "chainfeed"

// NewSugaredLogger creates a sugared logger based on the verbose flag.
// Verbose selects zap's development config (debug level, console output),
// otherwise the production JSON config is used. Timestamps are ISO8601 in both.
func NewSugaredLogger(verbose bool) (*zap.SugaredLogger, error) {
	cfg := zap.NewProductionConfig()
	mode := "production"
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		mode = "development"
	}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	l, err := cfg.Build(zap.Fields(zap.String("service", ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s logger: %w", mode, err)
	}
	return l.Sugar(), nil
}
