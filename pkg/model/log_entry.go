package model

import (
	"time"
)

// LogEntry is the shape retained by buffering transports and sent over the wire
// by the HTTP batcher: {id?, level, message, timestamp, metadata?, context?}.
type LogEntry struct {
	// ID is assigned by durable sinks (auto-increment). Zero for in-memory sinks.
	ID        int64  `json:"id,omitempty"`
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"` // ISO-8601, see FormatISO
	Metadata  Fields `json:"metadata,omitempty"`
	Context   Fields `json:"context,omitempty"`

	// Enriched by the collector, never set by transports.
	ClientID string `json:"client_id,omitempty"`
	ClientIP string `json:"client_ip,omitempty"`
}

// NewEntry stamps a transport-held entry at now. Metadata and context are
// copied so later mutation by the caller does not leak into buffers.
func NewEntry(level Level, message string, metadata, context Fields, now time.Time) LogEntry {
	return LogEntry{
		Level:     level,
		Message:   message,
		Timestamp: FormatISO(now),
		Metadata:  metadata.Clone(),
		Context:   context.Clone(),
	}
}

// Time parses the entry timestamp. It returns the zero time for malformed values.
func (e LogEntry) Time() time.Time {
	t, err := time.Parse(isoLayout, e.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}
