// Package transport contains the sinks a Logger dispatches rendered records to.
//
// Every transport implements Transport. Buffering transports additionally
// implement some of the optional capability interfaces below; callers probe for
// them with a type assertion or the Clear and Logs helpers.
//
// Log never fails from the caller's point of view. I/O and encoding failures
// are reported to a side-channel zap logger (see package diag) and swallowed.
package transport

import (
	"context"
	"maps"

	"github.com/predatorx7/logtopus/pkg/model"
	"github.com/predatorx7/logtopus/pkg/storage"
)

// Transport accepts a rendered record.
type Transport interface {
	Log(level model.Level, message string, metadata, context model.Fields)
}

// Clearer empties retained records.
type Clearer interface {
	Clear()
}

// Reader returns a snapshot of retained records. The slice is a copy.
type Reader interface {
	Logs() []model.LogEntry
}

// Querier returns retained records filtered by params, newest-first.
type Querier interface {
	Query(ctx context.Context, params storage.QueryParams) []model.LogEntry
}

// Flusher forces buffered records out.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Clear empties t when it supports it.
func Clear(t Transport) {
	if c, ok := t.(Clearer); ok {
		c.Clear()
	}
}

// Logs returns the records retained by t, or nil when t does not retain any.
func Logs(t Transport) []model.LogEntry {
	if r, ok := t.(Reader); ok {
		return r.Logs()
	}
	return nil
}

// Func adapts a function to Transport.
type Func func(level model.Level, message string, metadata, context model.Fields)

func (f Func) Log(level model.Level, message string, metadata, context model.Fields) {
	f(level, message, metadata, context)
}

// combine builds the structured payload written next to a rendered message:
// metadata keys plus a "context" key. It returns nil when both are empty.
func combine(metadata, context model.Fields) model.Fields {
	if len(metadata) == 0 && len(context) == 0 {
		return nil
	}
	out := make(model.Fields, len(metadata)+1)
	maps.Copy(out, metadata)
	if len(context) > 0 {
		out["context"] = context
	}
	return out
}
