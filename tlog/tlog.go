// Package tlog builds the named, leveled loggers every tagslam
// component takes, grounded on logging/impl.go's zap-backed named
// logger and the *zap.SugaredLogger.Named/Debugf/Warnf/Errorw call
// shapes used throughout services/slam/builtin/builtin.go.
package tlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds a development-encoder zap logger named name, at the
// given level, and returns its sugared form. Development encoding
// (human-readable, stack traces on Warn+) matches how the teacher's own
// _test.go files and cmd/ entry points construct loggers.
func NewLogger(name string, level zapcore.Level) *zap.SugaredLogger {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	logger, err := cfg.Build()
	if err != nil {
		// zap.NewDevelopmentConfig().Build() only fails on a broken
		// encoder/sink registration, never at runtime with defaults.
		panic(err)
	}
	return logger.Named(name).Sugar()
}

// NewTestLogger builds a logger suitable for _test.go files: the same
// shape as NewLogger, always at debug level, so assertions can rely on
// every diagnostic being emitted.
func NewTestLogger(name string) *zap.SugaredLogger {
	return NewLogger(name, zapcore.DebugLevel)
}
