// Package logging - Structured loggers for the overlay pipeline.
package logging

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logger type passed to every component.
type Logger = *zap.SugaredLogger

// New builds a console logger at the given level ("debug", "info", "warn", "error").
//
// Arguments:
//   - level: The minimum level to emit. Empty means info.
//
// Returns:
//   - Logger: The root logger.
//   - error: An error if the level is not recognised.
func New(level string) (Logger, error) {
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, errors.Wrapf(err, "parse log level %q", level)
		}
	}

	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}
	return logger.Sugar(), nil
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return zap.NewNop().Sugar()
}

// Named returns a child logger for a component, tolerating a nil parent.
func Named(parent Logger, name string) Logger {
	if parent == nil {
		return NewNop().Named(name)
	}
	return parent.Named(name)
}
