package model

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"
)

// Fields is an open-ended key/value bag used for both metadata and context.
type Fields map[string]any

// Clone returns a shallow copy, or nil when f is empty.
func (f Fields) Clone() Fields {
	if len(f) == 0 {
		return nil
	}
	return maps.Clone(f)
}

// Without returns a copy of f with keys removed.
func (f Fields) Without(keys ...string) Fields {
	out := make(Fields, len(f))
	maps.Copy(out, f)
	for _, k := range keys {
		delete(out, k)
	}
	return out
}

// Merge layers the given bags left to right; later layers win on collision.
// It returns nil when the result is empty.
func Merge(layers ...Fields) Fields {
	var out Fields
	for _, layer := range layers {
		if len(layer) == 0 {
			continue
		}
		if out == nil {
			out = make(Fields, len(layer))
		}
		maps.Copy(out, layer)
	}
	return out
}

// TimestampFormat selects how a record's time is encoded.
type TimestampFormat string

const (
	TimestampISO    TimestampFormat = "iso"
	TimestampLocale TimestampFormat = "locale"
	TimestampUnix   TimestampFormat = "unix"
)

// ParseTimestampFormat validates a format name; empty means iso.
func ParseTimestampFormat(s string) (TimestampFormat, error) {
	switch f := TimestampFormat(strings.ToLower(s)); f {
	case "":
		return TimestampISO, nil
	case TimestampISO, TimestampLocale, TimestampUnix:
		return f, nil
	}
	return "", fmt.Errorf("unknown timestamp format %q", s)
}

// isoLayout is fixed-width so encoded timestamps sort lexicographically.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatISO encodes t in UTC with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format(isoLayout)
}

// Encode renders t per the format.
func (f TimestampFormat) Encode(t time.Time) string {
	switch f {
	case TimestampLocale:
		return t.Local().Format(time.DateTime)
	case TimestampUnix:
		return strconv.FormatInt(t.Unix(), 10)
	default:
		return FormatISO(t)
	}
}

// Record is one log event flowing from the call site to the formatter.
type Record struct {
	Level           Level
	Message         string
	Time            time.Time // creation instant
	TimestampFormat TimestampFormat
	Prefix          string
	Metadata        Fields // caller-supplied, passed through untouched
	Context         Fields // merged ambient context, nil when empty
}

// Timestamp encodes the record time using its TimestampFormat.
func (r Record) Timestamp() string {
	return r.TimestampFormat.Encode(r.Time)
}
