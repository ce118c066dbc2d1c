// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a zap.Logger configured for development or production. The
// development logger is console-encoded and chatty; production emits
// unsampled JSON so per-item skip logs survive bursty runs.
func New(development bool) (*zap.Logger, error) {
	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
