// Package dmalog holds the logger shared by the DMA packages. It defaults to
// a no-op logger; drivers and tools install their own with UseLogger.
package dmalog

import (
	"go.uber.org/zap"
)

var logger = zap.NewNop()

// UseLogger replaces the package logger. A nil logger restores the no-op logger.
func UseLogger(zapLogger *zap.Logger) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	logger = zapLogger
}

// L returns the current package logger.
func L() *zap.Logger {
	return logger
}

// Adjust returns l, or the package logger named component when l is nil.
func Adjust(l *zap.Logger, component string) *zap.Logger {
	if l != nil {
		return l
	}
	return logger.Named(component)
}

// New builds the logger used by command-line tools: a development logger
// when verbose, errors only otherwise.
func New(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	return cfg.Build()
}
