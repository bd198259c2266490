package logger

import (
	"io"
	"os"
	"strings"

	charm "github.com/charmbracelet/log"
)

// TraceLevel sits below charm's DebugLevel and is used for very chatty
// diagnostics such as lock release failures.
const TraceLevel = charm.DebugLevel - 1

// Logger is a thin structured logger over charmbracelet/log.
type Logger struct {
	charm *charm.Logger
}

// New creates a Logger writing to stderr.
func New() *Logger {
	return NewWithOutput(os.Stderr)
}

// NewWithOutput creates a Logger writing to the given writer.
func NewWithOutput(w io.Writer) *Logger {
	return &Logger{charm: charm.New(w)}
}

// SetLevel sets the minimum level that will be emitted.
func (l *Logger) SetLevel(level charm.Level) {
	l.charm.SetLevel(level)
}

// ParseLevel converts a level name into a charm level. Unknown names
// fall back to InfoLevel.
func ParseLevel(name string) charm.Level {
	switch strings.ToLower(name) {
	case "trace":
		return TraceLevel
	case "debug":
		return charm.DebugLevel
	case "warn", "warning":
		return charm.WarnLevel
	case "error":
		return charm.ErrorLevel
	default:
		return charm.InfoLevel
	}
}

func (l *Logger) Trace(msg interface{}, keyvals ...interface{}) {
	l.charm.Log(TraceLevel, msg, keyvals...)
}

func (l *Logger) Debug(msg interface{}, keyvals ...interface{}) {
	l.charm.Debug(msg, keyvals...)
}

func (l *Logger) Info(msg interface{}, keyvals ...interface{}) {
	l.charm.Info(msg, keyvals...)
}

func (l *Logger) Warn(msg interface{}, keyvals ...interface{}) {
	l.charm.Warn(msg, keyvals...)
}

func (l *Logger) Error(msg interface{}, keyvals ...interface{}) {
	l.charm.Error(msg, keyvals...)
}
