// Package logging provides zap logger helpers.
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Option customizes the logger built by New.
type Option func(*options)

type options struct {
	ring  *Ring
	level *zapcore.Level
}

// WithRing tees every log entry into r.
func WithRing(r *Ring) Option {
	return func(o *options) { o.ring = r }
}

// WithLevel overrides the minimum enabled level.
func WithLevel(level zapcore.Level) Option {
	return func(o *options) { o.level = &level }
}

// New builds a zap.Logger configured for development or production.
func New(development bool, opts ...Option) (*zap.Logger, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var cfg zap.Config
	if development {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.DisableStacktrace = false
	}
	cfg.EncoderConfig.TimeKey = "ts"
	if o.level != nil {
		cfg.Level = zap.NewAtomicLevelAt(*o.level)
	}

	var buildOpts []zap.Option
	if o.ring != nil {
		ring := o.ring
		level := cfg.Level
		buildOpts = append(buildOpts, zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewTee(core, ring.Core(level))
		}))
	}

	logger, err := cfg.Build(buildOpts...)
	if err != nil {
		if development {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}
