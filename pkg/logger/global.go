package logger

import "sync/atomic"

// defaultLogger is the global default Logger instance stored atomically.
var defaultLogger atomic.Value

func init() {
	defaultLogger.Store(New())
}

// Default returns the global default Logger instance.
func Default() *Logger {
	return defaultLogger.Load().(*Logger)
}

// SetDefault sets a new global default Logger instance.
func SetDefault(logger *Logger) {
	if logger != nil {
		defaultLogger.Store(logger)
	}
}

// Package-level helpers delegating to the default logger.

func Trace(msg interface{}, keyvals ...interface{}) { Default().Trace(msg, keyvals...) }

func Debug(msg interface{}, keyvals ...interface{}) { Default().Debug(msg, keyvals...) }

func Info(msg interface{}, keyvals ...interface{}) { Default().Info(msg, keyvals...) }

func Warn(msg interface{}, keyvals ...interface{}) { Default().Warn(msg, keyvals...) }

func Error(msg interface{}, keyvals ...interface{}) { Default().Error(msg, keyvals...) }
