package transport

import (
	"os"

	"github.com/predatorx7/logtopus/pkg/diag"
	"github.com/predatorx7/logtopus/pkg/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ConsoleConfig configures the console transport.
type ConsoleConfig struct {
	// Logger overrides the zap logger records are written to.
	Logger       *zap.Logger
	EnableColors bool
}

// Console routes records by level to standard output (debug, info) and
// standard error (warn, error).
type Console struct {
	logger *zap.Logger
}

func NewConsole(cfg ConsoleConfig) *Console {
	l := cfg.Logger
	if l == nil {
		enc := diag.ConsoleEncoder(cfg.EnableColors)
		low := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl < zapcore.WarnLevel })
		high := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool { return lvl >= zapcore.WarnLevel })
		l = zap.New(zapcore.NewTee(
			zapcore.NewCore(enc, zapcore.Lock(os.Stdout), low),
			zapcore.NewCore(enc, zapcore.Lock(os.Stderr), high),
		))
	}
	return &Console{logger: l}
}

// Log writes message and, only when metadata or context is present, a single
// "data" field holding both.
func (c *Console) Log(level model.Level, message string, metadata, context model.Fields) {
	var fields []zap.Field
	if data := combine(metadata, context); data != nil {
		fields = append(fields, zap.Any("data", map[string]any(data)))
	}

	switch level {
	case model.LevelDebug:
		c.logger.Debug(message, fields...)
	case model.LevelWarn:
		c.logger.Warn(message, fields...)
	case model.LevelError:
		c.logger.Error(message, fields...)
	default:
		c.logger.Info(message, fields...)
	}
}

// Sync flushes the underlying zap logger.
func (c *Console) Sync() error {
	return c.logger.Sync()
}
