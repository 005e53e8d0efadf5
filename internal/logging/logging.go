// Package logging is a small structured-logging facade so the rest of the
// runtime logs through an interface rather than a concrete library: an
// error is logged once, at the point it crosses out of the runtime to a
// caller, not at every layer it passes through on the way up.
package logging

import "go.uber.org/zap"

// Logger is the leveled logging surface the runtime depends on.
type Logger interface {
	Debug(msg string, kv ...interface{})
	Info(msg string, kv ...interface{})
	Error(msg string, kv ...interface{})
}

type zapLogger struct {
	l *zap.SugaredLogger
}

// NewZap wraps z as a Logger.
func NewZap(z *zap.Logger) Logger {
	return &zapLogger{l: z.Sugar()}
}

func (z *zapLogger) Debug(msg string, kv ...interface{}) { z.l.Debugw(msg, kv...) }
func (z *zapLogger) Info(msg string, kv ...interface{})  { z.l.Infow(msg, kv...) }
func (z *zapLogger) Error(msg string, kv ...interface{}) { z.l.Errorw(msg, kv...) }

type discard struct{}

func (discard) Debug(string, ...interface{}) {}
func (discard) Info(string, ...interface{})  {}
func (discard) Error(string, ...interface{}) {}

// Discard returns a Logger that drops everything, the default when a
// caller hasn't configured one.
func Discard() Logger { return discard{} }

// NewProduction builds a Logger backed by zap's production configuration
// (JSON output, info level and above).
func NewProduction() (Logger, error) {
	z, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return NewZap(z), nil
}

// NewDevelopment builds a Logger backed by zap's development configuration
// (console output, debug level and above), the one the CLI uses.
func NewDevelopment() (Logger, error) {
	z, err := zap.NewDevelopment()
	if err != nil {
		return nil, err
	}
	return NewZap(z), nil
}
