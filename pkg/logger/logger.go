// Package logger is the entry point applications log through.
//
// A Logger filters records by severity, merges the process-wide context with
// its own overlay, renders the record with a Formatter and hands the result to
// each of its transports in order.
package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/predatorx7/logtopus/pkg/diag"
	"github.com/predatorx7/logtopus/pkg/format"
	"github.com/predatorx7/logtopus/pkg/logctx"
	"github.com/predatorx7/logtopus/pkg/model"
	"github.com/predatorx7/logtopus/pkg/transport"
	"go.uber.org/zap"
)

const DefaultPrefix = "App"

// Config holds the options for New. Zero values select the defaults.
type Config struct {
	Prefix    string
	Formatter format.Formatter
	// Transports defaults to a single console transport. Pass an empty,
	// non-nil slice for a logger without transports.
	Transports []transport.Transport
	MinLevel   model.Level
	// Context is the logger's own overlay, merged over the store's context.
	Context model.Fields
	Store   *logctx.Store
	// EnableMetadata defaults to true. When false, metadata passed to Log is
	// dropped before formatting.
	EnableMetadata  *bool
	TimestampFormat model.TimestampFormat
	// ErrorLog receives failures the logger cannot deliver anywhere else.
	ErrorLog *zap.Logger
	Now      func() time.Time
}

// Bool returns a pointer to b, for Config.EnableMetadata.
func Bool(b bool) *bool {
	return &b
}

// transports is shared by a logger and every logger derived from it, so a
// transport added to one is seen by all.
type transports struct {
	mu    sync.RWMutex
	items []transport.Transport
}

func (ts *transports) snapshot() []transport.Transport {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return slices.Clone(ts.items)
}

type Logger struct {
	prefix         string
	store          *logctx.Store
	overlay        model.Fields
	enableMetadata bool
	tsFormat       model.TimestampFormat
	errLog         *zap.Logger
	now            func() time.Time
	transports     *transports

	mu        sync.RWMutex
	formatter format.Formatter
	minLevel  model.Level
}

func New(cfg Config) *Logger {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if cfg.Formatter == nil {
		cfg.Formatter = format.Text{}
	}
	if cfg.Transports == nil {
		cfg.Transports = []transport.Transport{transport.NewConsole(transport.ConsoleConfig{EnableColors: true})}
	}
	if !cfg.MinLevel.Valid() {
		cfg.MinLevel = model.LevelInfo
	}
	if cfg.Store == nil {
		cfg.Store = logctx.Default()
	}
	if cfg.TimestampFormat == "" {
		cfg.TimestampFormat = model.TimestampISO
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	enableMetadata := true
	if cfg.EnableMetadata != nil {
		enableMetadata = *cfg.EnableMetadata
	}

	return &Logger{
		prefix:         cfg.Prefix,
		store:          cfg.Store,
		overlay:        cfg.Context.Clone(),
		enableMetadata: enableMetadata,
		tsFormat:       cfg.TimestampFormat,
		errLog:         diag.Or(cfg.ErrorLog).Named("logger"),
		now:            cfg.Now,
		transports:     &transports{items: slices.Clone(cfg.Transports)},
		formatter:      cfg.Formatter,
		minLevel:       cfg.MinLevel,
	}
}

// Log renders the record and dispatches it to every transport. Records below
// the minimum level are discarded.
func (l *Logger) Log(level model.Level, message string, metadata model.Fields) {
	if !level.Valid() {
		l.errLog.Warn("dropping record with unknown level",
			zap.Uint8("level", uint8(level)),
			zap.String("message", message))
		return
	}

	l.mu.RLock()
	formatter, minLevel := l.formatter, l.minLevel
	l.mu.RUnlock()

	if !level.Enabled(minLevel) {
		return
	}

	if !l.enableMetadata {
		metadata = nil
	}
	record := model.Record{
		Level:           level,
		Message:         message,
		Time:            l.now(),
		TimestampFormat: l.tsFormat,
		Prefix:          l.prefix,
		Metadata:        metadata,
		Context:         model.Merge(l.store.Get(), l.overlay),
	}
	out := l.format(formatter, record)

	for _, t := range l.transports.snapshot() {
		l.dispatch(t, level, out, record.Context)
	}
}

// format runs the formatter. A panicking formatter is reported and the record
// goes out with its raw message.
func (l *Logger) format(f format.Formatter, record model.Record) (out format.Output) {
	defer func() {
		if r := recover(); r != nil {
			l.errLog.Error("formatter panicked",
				zap.String("formatter", fmt.Sprintf("%T", f)),
				zap.Any("panic", r))
			out = format.Output{Message: record.Message, Metadata: record.Metadata}
		}
	}()
	return f.Format(record)
}

func (l *Logger) dispatch(t transport.Transport, level model.Level, out format.Output, ctx model.Fields) {
	defer func() {
		if r := recover(); r != nil {
			l.errLog.Error("transport panicked",
				zap.String("transport", fmt.Sprintf("%T", t)),
				zap.Any("panic", r))
		}
	}()
	t.Log(level, out.Message, out.Metadata, ctx)
}

func (l *Logger) Debug(message string, metadata ...model.Fields) {
	l.Log(model.LevelDebug, message, model.Merge(metadata...))
}

func (l *Logger) Info(message string, metadata ...model.Fields) {
	l.Log(model.LevelInfo, message, model.Merge(metadata...))
}

func (l *Logger) Warn(message string, metadata ...model.Fields) {
	l.Log(model.LevelWarn, message, model.Merge(metadata...))
}

func (l *Logger) Error(message string, metadata ...model.Fields) {
	l.Log(model.LevelError, message, model.Merge(metadata...))
}

func (l *Logger) Debugf(format string, args ...any) {
	l.Log(model.LevelDebug, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Infof(format string, args ...any) {
	l.Log(model.LevelInfo, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Warnf(format string, args ...any) {
	l.Log(model.LevelWarn, fmt.Sprintf(format, args...), nil)
}

func (l *Logger) Errorf(format string, args ...any) {
	l.Log(model.LevelError, fmt.Sprintf(format, args...), nil)
}

// SetFormatter replaces the formatter. A nil formatter is ignored.
func (l *Logger) SetFormatter(f format.Formatter) *Logger {
	if f == nil {
		return l
	}
	l.mu.Lock()
	l.formatter = f
	l.mu.Unlock()
	return l
}

// AddTransport appends t. Loggers derived with WithContext see it too.
func (l *Logger) AddTransport(t transport.Transport) *Logger {
	l.transports.mu.Lock()
	l.transports.items = append(l.transports.items, t)
	l.transports.mu.Unlock()
	return l
}

// ClearTransports removes every transport without closing it.
func (l *Logger) ClearTransports() *Logger {
	l.transports.mu.Lock()
	l.transports.items = nil
	l.transports.mu.Unlock()
	return l
}

// SetMinLevel changes the severity threshold. Unknown levels are ignored.
func (l *Logger) SetMinLevel(level model.Level) *Logger {
	if !level.Valid() {
		l.errLog.Warn("ignoring unknown minimum level", zap.Uint8("level", uint8(level)))
		return l
	}
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
	return l
}

// WithContext returns a logger whose overlay is the receiver's merged with
// fields. The receiver is not modified.
func (l *Logger) WithContext(fields model.Fields) *Logger {
	return l.derive(model.Merge(l.overlay, fields))
}

// WithoutContext returns a logger whose overlay lacks keys. Keys set in the
// shared store are unaffected.
func (l *Logger) WithoutContext(keys ...string) *Logger {
	return l.derive(l.overlay.Without(keys...))
}

func (l *Logger) derive(overlay model.Fields) *Logger {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return &Logger{
		prefix:         l.prefix,
		store:          l.store,
		overlay:        overlay,
		enableMetadata: l.enableMetadata,
		tsFormat:       l.tsFormat,
		errLog:         l.errLog,
		now:            l.now,
		transports:     l.transports,
		formatter:      l.formatter,
		minLevel:       l.minLevel,
	}
}

// Clone returns an independent logger with the same settings and its own
// copy of the transport list.
func (l *Logger) Clone() *Logger {
	c := l.derive(l.overlay.Clone())
	c.transports = &transports{items: l.transports.snapshot()}
	return c
}

func (l *Logger) Prefix() string {
	return l.prefix
}

func (l *Logger) MinLevel() model.Level {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.minLevel
}

func (l *Logger) Formatter() format.Formatter {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.formatter
}

// Context returns a copy of the logger's overlay, without the store's fields.
func (l *Logger) Context() model.Fields {
	return l.overlay.Clone()
}

// Store returns the shared context store.
func (l *Logger) Store() *logctx.Store {
	return l.store
}

// Transports returns a copy of the transport list.
func (l *Logger) Transports() []transport.Transport {
	return l.transports.snapshot()
}

// Flush flushes every transport that buffers.
func (l *Logger) Flush(ctx context.Context) error {
	var errs []error
	for _, t := range l.transports.snapshot() {
		if f, ok := t.(transport.Flusher); ok {
			if err := f.Flush(ctx); err != nil {
				errs = append(errs, fmt.Errorf("%T: %w", t, err))
			}
		}
	}
	return errors.Join(errs...)
}

// Close closes every transport that holds resources. The logger keeps its
// transports; logging after Close is up to each transport.
func (l *Logger) Close() error {
	var errs []error
	for _, t := range l.transports.snapshot() {
		if c, ok := t.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%T: %w", t, err))
			}
		}
	}
	return errors.Join(errs...)
}
