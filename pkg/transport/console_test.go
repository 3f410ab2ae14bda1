package transport

import (
	"testing"

	"github.com/predatorx7/logtopus/pkg/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConsole_RoutesByLevel(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	c := NewConsole(ConsoleConfig{Logger: zap.New(core)})

	tests := []struct {
		level model.Level
		want  zapcore.Level
	}{
		{model.LevelDebug, zapcore.DebugLevel},
		{model.LevelInfo, zapcore.InfoLevel},
		{model.LevelWarn, zapcore.WarnLevel},
		{model.LevelError, zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		c.Log(tt.level, "msg "+tt.level.String(), nil, nil)
	}

	entries := recorded.All()
	if len(entries) != len(tests) {
		t.Fatalf("Expected %d entries, got %d", len(tests), len(entries))
	}
	for i, tt := range tests {
		if entries[i].Level != tt.want {
			t.Errorf("Expected %s for %s, got %s", tt.want, tt.level, entries[i].Level)
		}
	}
}

func TestConsole_DataOnlyWhenPresent(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	c := NewConsole(ConsoleConfig{Logger: zap.New(core)})

	c.Log(model.LevelInfo, "bare", nil, nil)
	c.Log(model.LevelInfo, "rich", model.Fields{"id": 7}, model.Fields{"user": "u-1"})

	entries := recorded.All()
	if len(entries[0].Context) != 0 {
		t.Errorf("Expected no fields on a bare record, got %v", entries[0].Context)
	}

	data, ok := entries[1].ContextMap()["data"].(map[string]any)
	if !ok {
		t.Fatalf("Expected data field, got %v", entries[1].ContextMap())
	}
	if data["id"] != 7 {
		t.Errorf("Expected metadata in data, got %v", data)
	}
	if ctx, ok := data["context"].(model.Fields); !ok || ctx["user"] != "u-1" {
		t.Errorf("Expected context in data, got %v", data["context"])
	}
}
