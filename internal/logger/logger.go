// Package logger builds the zap loggers used across the service.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a logger tagged with the service name. The debug level uses the
// development encoder; every other level logs JSON.
func New(service, level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stdout"}
	cfg.InitialFields = map[string]interface{}{
		"service": service,
	}

	return cfg.Build()
}

// Must is New for process startup; it panics on error.
func Must(service, level string) *zap.Logger {
	l, err := New(service, level)
	if err != nil {
		panic(err)
	}
	return l
}
