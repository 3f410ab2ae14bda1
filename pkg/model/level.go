package model

import (
	"fmt"
	"strings"
)

// Level defines the severity of a log record.
type Level uint8

// Levels are ordered by ascending severity. The zero value is not a level so
// that an unset Level in a config can be told apart from debug.
const (
	LevelDebug Level = iota + 1
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "debug",
	LevelInfo:  "info",
	LevelWarn:  "warn",
	LevelError: "error",
}

// Levels lists every known level in ascending severity.
var Levels = []Level{LevelDebug, LevelInfo, LevelWarn, LevelError}

// ParseLevel resolves a case-insensitive level name. "warning" is accepted as
// an alias of warn.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// Valid reports whether l is one of the four known levels.
func (l Level) Valid() bool {
	_, ok := levelNames[l]
	return ok
}

// Enabled reports whether a record at l passes a minimum level of min.
func (l Level) Enabled(min Level) bool {
	return l.Valid() && l >= min
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", uint8(l))
}

// Upper returns the upper-case name used by the text formatters.
func (l Level) Upper() string {
	return strings.ToUpper(l.String())
}

// MarshalText encodes the level as its lower-case name.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid log level %d", uint8(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText decodes a level name. It is used by encoding/json and yaml.v3.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}
