package file

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/predatorx7/logtopus/pkg/model"
	"go.uber.org/zap"
)

type MockSubscriberBroker struct {
	SubCh chan []model.LogEntry
}

func (m *MockSubscriberBroker) Subscribe(ctx context.Context) (<-chan []model.LogEntry, error) {
	return m.SubCh, nil
}

func readLines(t *testing.T, path string) []model.LogEntry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("File %s was not created: %v", path, err)
	}
	defer f.Close()

	var entries []model.LogEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e model.LogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("Invalid JSON line %q: %v", sc.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestSubscriber(t *testing.T) {
	tmpDir := t.TempDir()
	ch := make(chan []model.LogEntry, 1)
	sub := NewSubscriber(&MockSubscriberBroker{SubCh: ch}, Config{OutputDir: tmpDir, Logger: zap.NewNop()})

	done := make(chan error, 1)
	go func() { done <- sub.Start(context.Background()) }()

	ch <- []model.LogEntry{
		{ClientID: "web", Level: model.LevelInfo, Message: "test", Timestamp: "2024-01-01T00:00:00.000Z"},
		{ClientID: "web", Level: model.LevelError, Message: "test2", Timestamp: "2024-01-01T00:00:01.000Z"},
		{ClientID: "ios/app", Level: model.LevelWarn, Message: "other"},
		{Level: model.LevelInfo, Message: "anonymous"},
	}
	close(ch)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for subscriber to stop")
	}

	web := readLines(t, filepath.Join(tmpDir, "client_web.jsonl"))
	if len(web) != 2 || web[0].Message != "test" || web[1].Level != model.LevelError {
		t.Errorf("Unexpected web entries: %v", web)
	}
	if got := readLines(t, filepath.Join(tmpDir, "client_ios_app.jsonl")); len(got) != 1 {
		t.Errorf("Expected 1 sanitised-id entry, got %d", len(got))
	}
	if got := readLines(t, filepath.Join(tmpDir, "client_unknown_client.jsonl")); len(got) != 1 {
		t.Errorf("Expected 1 anonymous entry, got %d", len(got))
	}
}
