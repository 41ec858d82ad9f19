// Package zaplog backs pion/logging's LoggerFactory with a zap logger, so
// library packages keep their LeveledLogger while binaries get structured
// output.
package zaplog

import (
	"fmt"
	"strings"

	"github.com/pion/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Factory creates one named zap logger per scope.
type Factory struct {
	base  *zap.Logger
	trace bool
}

// New builds a zap logger for level ("trace", "debug", "info", "warn",
// "error", "disabled") and format ("console" or "json").
func New(level, format string) (*Factory, error) {
	level = strings.ToLower(level)
	trace := level == "trace"

	var zl zapcore.Level
	switch level {
	case "trace":
		zl = zapcore.DebugLevel
	case "disabled", "off":
		return NewFactory(zap.NewNop()), nil
	default:
		if err := zl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("zaplog: invalid level %q", level)
		}
	}

	var cfg zap.Config
	switch strings.ToLower(format) {
	case "json":
		cfg = zap.NewProductionConfig()
	case "console", "":
		cfg = zap.NewDevelopmentConfig()
		cfg.DisableStacktrace = true
	default:
		return nil, fmt.Errorf("zaplog: invalid format %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(zl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	base, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Factory{base: base, trace: trace}, nil
}

// NewFactory wraps an existing zap logger. Trace messages are dropped.
func NewFactory(base *zap.Logger) *Factory {
	return &Factory{base: base}
}

// NewLogger implements logging.LoggerFactory.
func (f *Factory) NewLogger(scope string) logging.LeveledLogger {
	return &logger{s: f.base.Named(scope).Sugar(), trace: f.trace}
}

// Zap returns the underlying logger.
func (f *Factory) Zap() *zap.Logger {
	return f.base
}

// Sync flushes buffered entries.
func (f *Factory) Sync() error {
	return f.base.Sync()
}

var _ logging.LoggerFactory = (*Factory)(nil)

// logger adapts a SugaredLogger to logging.LeveledLogger.
// zap has no trace level; trace goes to debug when enabled.
type logger struct {
	s     *zap.SugaredLogger
	trace bool
}

func (l *logger) Trace(msg string) {
	if l.trace {
		l.s.Debug(msg)
	}
}

func (l *logger) Tracef(format string, args ...interface{}) {
	if l.trace {
		l.s.Debugf(format, args...)
	}
}

func (l *logger) Debug(msg string)                          { l.s.Debug(msg) }
func (l *logger) Debugf(format string, args ...interface{}) { l.s.Debugf(format, args...) }
func (l *logger) Info(msg string)                           { l.s.Info(msg) }
func (l *logger) Infof(format string, args ...interface{})  { l.s.Infof(format, args...) }
func (l *logger) Warn(msg string)                           { l.s.Warn(msg) }
func (l *logger) Warnf(format string, args ...interface{})  { l.s.Warnf(format, args...) }
func (l *logger) Error(msg string)                          { l.s.Error(msg) }
func (l *logger) Errorf(format string, args ...interface{}) { l.s.Errorf(format, args...) }
