package storage

import (
	"testing"

	"github.com/predatorx7/logtopus/pkg/model"
)

func TestMatch(t *testing.T) {
	entry := model.LogEntry{Level: model.LevelWarn, Timestamp: "2024-01-01T00:00:02.000Z"}

	tests := []struct {
		name   string
		params QueryParams
		want   bool
	}{
		{"no filter", QueryParams{}, true},
		{"same level", QueryParams{Level: model.LevelWarn}, true},
		{"other level", QueryParams{Level: model.LevelError}, false},
		{"inclusive from", QueryParams{From: "2024-01-01T00:00:02.000Z"}, true},
		{"inclusive to", QueryParams{To: "2024-01-01T00:00:02.000Z"}, true},
		{"before from", QueryParams{From: "2024-01-01T00:00:03.000Z"}, false},
		{"after to", QueryParams{To: "2024-01-01T00:00:01.000Z"}, false},
		{"limit ignored", QueryParams{Limit: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(entry, tt.params); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}
