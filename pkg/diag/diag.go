// Package diag is the side channel used to report failures inside the logging
// pipeline itself. Transports write here instead of to their configured sinks
// so that a broken sink can never feed back into itself.
package diag

import (
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ANSI color codes
const (
	Reset = "\033[0m"
	Bold  = "\033[1m"
	Dim   = "\033[2m"

	Red          = "\033[31m"
	Gray         = "\033[90m"
	White        = "\033[37m"
	BrightRed    = "\033[91m"
	BrightYellow = "\033[93m"
	BrightWhite  = "\033[97m"
	BrightCyan   = "\033[96m"
)

var current atomic.Pointer[zap.Logger]

// Logger returns the process side-channel logger. It is created on first use
// and writes coloured lines to stderr.
func Logger() *zap.Logger {
	if l := current.Load(); l != nil {
		return l
	}
	l := New(zapcore.Lock(os.Stderr), true).Named("logtopus")
	if current.CompareAndSwap(nil, l) {
		return l
	}
	return current.Load()
}

// SetLogger replaces the side-channel logger and returns the previous one.
// Passing nil restores the stderr default on next use.
func SetLogger(l *zap.Logger) *zap.Logger {
	return current.Swap(l)
}

// Or returns l when non-nil, otherwise the side-channel logger.
func Or(l *zap.Logger) *zap.Logger {
	if l != nil {
		return l
	}
	return Logger()
}

// New builds a debug-level zap logger over ws with the compact console encoder.
func New(ws zapcore.WriteSyncer, enableColors bool) *zap.Logger {
	core := zapcore.NewCore(ConsoleEncoder(enableColors), ws, zapcore.DebugLevel)
	return zap.New(core)
}

// LevelColor returns the color for a log level
func LevelColor(level zapcore.Level) string {
	switch level {
	case zapcore.DebugLevel:
		return Gray
	case zapcore.InfoLevel:
		return BrightWhite
	case zapcore.WarnLevel:
		return BrightYellow
	case zapcore.ErrorLevel:
		return BrightRed
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return Red
	default:
		return White
	}
}

// ConsoleEncoder creates the compact encoder shared by the side channel and the
// console transport: HH:MM:SS, a single-letter level and the logger name.
func ConsoleEncoder(enableColors bool) zapcore.Encoder {
	config := zap.NewDevelopmentEncoderConfig()
	config.CallerKey = ""
	config.StacktraceKey = ""

	config.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		timeStr := t.Format("15:04:05")
		if enableColors {
			enc.AppendString(fmt.Sprintf("%s%s%s", Dim, timeStr, Reset))
		} else {
			enc.AppendString(timeStr)
		}
	}

	config.EncodeLevel = func(level zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		levelStr := strings.ToUpper(level.String()[:1])
		if enableColors {
			enc.AppendString(fmt.Sprintf("%s%s%s%s", LevelColor(level), Bold, levelStr, Reset))
		} else {
			enc.AppendString(levelStr)
		}
	}

	config.EncodeName = func(name string, enc zapcore.PrimitiveArrayEncoder) {
		if enableColors {
			enc.AppendString(fmt.Sprintf("%s[%s]%s", BrightCyan, name, Reset))
		} else {
			enc.AppendString("[" + name + "]")
		}
	}

	return zapcore.NewConsoleEncoder(config)
}
