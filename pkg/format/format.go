// Package format renders records into the message handed to transports.
//
// Formatters are pure: they never perform I/O and never mutate the record.
package format

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/predatorx7/logtopus/pkg/model"
)

// Output is what a formatter hands to the transports.
type Output struct {
	Message  string
	Metadata model.Fields
}

// Formatter turns a record into a rendered message plus passthrough metadata.
type Formatter interface {
	Format(r model.Record) Output
}

// Func adapts a plain function to Formatter.
type Func func(r model.Record) Output

// Format calls f(r).
func (f Func) Format(r model.Record) Output { return f(r) }

// ByName resolves a built-in formatter: text, pretty, minimal or json.
func ByName(name string) (Formatter, error) {
	switch strings.ToLower(name) {
	case "", "text":
		return Text{}, nil
	case "pretty":
		return Pretty{}, nil
	case "minimal":
		return Minimal{}, nil
	case "json":
		return JSON{}, nil
	}
	return nil, fmt.Errorf("unknown formatter %q", name)
}

// Text renders "[timestamp] [prefix] LEVEL: message".
type Text struct{}

func (Text) Format(r model.Record) Output {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(r.Timestamp())
	b.WriteString("] [")
	b.WriteString(r.Prefix)
	b.WriteString("] ")
	b.WriteString(r.Level.Upper())
	b.WriteString(": ")
	b.WriteString(r.Message)
	writeContext(&b, r.Context)
	return Output{Message: b.String(), Metadata: r.Metadata}
}

var symbols = map[model.Level]string{
	model.LevelDebug: "🐛",
	model.LevelInfo:  "ℹ️",
	model.LevelWarn:  "⚠️",
	model.LevelError: "❌",
}

// Pretty renders "symbol HH:MM:SS [prefix] message" in local time.
type Pretty struct{}

func (Pretty) Format(r model.Record) Output {
	symbol, ok := symbols[r.Level]
	if !ok {
		symbol = "•"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s [%s] %s", symbol, r.Time.Local().Format("15:04:05"), r.Prefix, r.Message)
	writeContext(&b, r.Context)
	return Output{Message: b.String(), Metadata: r.Metadata}
}

// Minimal renders "LEVEL: message".
type Minimal struct{}

func (Minimal) Format(r model.Record) Output {
	var b strings.Builder
	b.WriteString(r.Level.Upper())
	b.WriteString(": ")
	b.WriteString(r.Message)
	writeContext(&b, r.Context)
	return Output{Message: b.String(), Metadata: r.Metadata}
}

// JSON renders the record as a JSON object. Context is embedded as a field
// rather than summarised inline.
type JSON struct{}

type jsonRecord struct {
	Level     model.Level  `json:"level"`
	Timestamp string       `json:"timestamp"`
	Prefix    string       `json:"prefix"`
	Message   string       `json:"message"`
	Context   model.Fields `json:"context,omitempty"`
}

func (JSON) Format(r model.Record) Output {
	data, err := json.Marshal(jsonRecord{
		Level:     r.Level,
		Timestamp: r.Timestamp(),
		Prefix:    r.Prefix,
		Message:   r.Message,
		Context:   r.Context,
	})
	if err != nil {
		// unencodable context values or an invalid level
		data, _ = json.Marshal(map[string]string{
			"level":   r.Level.String(),
			"message": r.Message,
			"error":   err.Error(),
		})
	}
	return Output{Message: string(data), Metadata: r.Metadata}
}

// writeContext appends " | context: k=v ..." with keys sorted.
func writeContext(b *strings.Builder, ctx model.Fields) {
	if len(ctx) == 0 {
		return
	}
	keys := make([]string, 0, len(ctx))
	for k := range ctx {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	b.WriteString(" | context:")
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(renderValue(ctx[k]))
	}
}

func renderValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}
