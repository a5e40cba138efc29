// Package logger builds the structured loggers handed to every component
// that needs one: engine, index, and storage all take a *zap.SugaredLogger
// through their Config rather than constructing their own, so the process
// controls verbosity and output format in one place.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a production-mode *zap.SugaredLogger tagged with the given
// service name. Production mode means JSON output at info level and
// above; use NewDevelopment for human-readable console output during
// local debugging.
func New(service string) *zap.SugaredLogger {
	base, err := zap.NewProduction()
	if err != nil {
		// zap.NewProduction only fails if the default config is
		// somehow invalid, which never happens with stock settings.
		base = zap.NewNop()
	}
	return base.Sugar().With("service", service)
}

// NewDevelopment builds a console-output *zap.SugaredLogger at debug
// level, suited to local development and tests.
func NewDevelopment(service string) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)

	base, err := cfg.Build()
	if err != nil {
		base = zap.NewNop()
	}
	return base.Sugar().With("service", service)
}

// Noop returns a logger that discards everything, for use in tests that
// don't care about log output.
func Noop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
