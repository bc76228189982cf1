// Package log provides the structured logger used throughout the agent
// core. It wraps zap the way most of our dependents expect: a small
// interface with leveled calls plus keyed "w" variants, so call sites never
// import zap directly.
package log

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging surface every component depends on.
//
//nolint:interfacebloat // mirrors the teacher's logging contract on purpose
type Logger interface {
	Debug(keyvals ...interface{})
	Info(keyvals ...interface{})
	Warn(keyvals ...interface{})
	Error(keyvals ...interface{})
	Fatal(keyvals ...interface{})

	Debugw(msg string, keyvals ...interface{})
	Infow(msg string, keyvals ...interface{})
	Warnw(msg string, keyvals ...interface{})
	Errorw(msg string, keyvals ...interface{})
	Fatalw(msg string, keyvals ...interface{})

	With(args ...interface{}) Logger
	Named(name string) Logger
}

type log struct {
	*zap.SugaredLogger
}

const (
	DebugLevel = int(zapcore.DebugLevel)
	InfoLevel  = int(zapcore.InfoLevel)
	WarnLevel  = int(zapcore.WarnLevel)
	ErrorLevel = int(zapcore.ErrorLevel)
	FatalLevel = int(zapcore.FatalLevel)
)

// New builds a Logger writing to sink at the given minimum level. When color
// is true, level names are rendered with their usual console coloring.
func New(sink zapcore.WriteSyncer, level int, color bool) Logger {
	encCfg := zap.NewDevelopmentEncoderConfig()
	if color {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), sink, zapcore.Level(level))
	l := zap.New(core, zap.AddCaller())
	return &log{l.Sugar()}
}

// NewDefault returns the default stderr logger at info level.
func NewDefault() Logger {
	return New(zapcore.AddSync(os.Stderr), InfoLevel, true)
}

func (l *log) With(args ...interface{}) Logger {
	return &log{l.SugaredLogger.With(args...)}
}

func (l *log) Named(name string) Logger {
	return &log{l.SugaredLogger.Named(name)}
}
