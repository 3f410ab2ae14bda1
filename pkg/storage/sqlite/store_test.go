package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/predatorx7/logtopus/pkg/model"
	"github.com/predatorx7/logtopus/pkg/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "logs.db"), "")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AddQuery(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first, err := s.Add(ctx, model.LogEntry{
		Level:     model.LevelInfo,
		Message:   "started",
		Timestamp: "2024-01-01T00:00:01.000Z",
		Metadata:  model.Fields{"port": float64(8080)},
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	second, _ := s.Add(ctx, model.LogEntry{
		Level:     model.LevelError,
		Message:   "crashed",
		Timestamp: "2024-01-01T00:00:02.000Z",
		Context:   model.Fields{"user": "u-1"},
	})
	if second != first+1 {
		t.Errorf("Expected auto-increment ids, got %d then %d", first, second)
	}

	all, err := s.Query(ctx, storage.QueryParams{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(all) != 2 || all[0].Message != "crashed" {
		t.Fatalf("Expected newest-first, got %v", all)
	}
	if all[0].Context["user"] != "u-1" || all[1].Metadata["port"] != float64(8080) {
		t.Errorf("Fields did not round-trip: %+v", all)
	}

	errs, _ := s.Query(ctx, storage.QueryParams{Level: model.LevelError})
	if len(errs) != 1 || errs[0].Level != model.LevelError {
		t.Errorf("Expected one error entry, got %v", errs)
	}

	ranged, _ := s.Query(ctx, storage.QueryParams{To: "2024-01-01T00:00:01.000Z"})
	if len(ranged) != 1 || ranged[0].Message != "started" {
		t.Errorf("Expected inclusive upper bound, got %v", ranged)
	}
}

func TestStore_Eviction(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, ts := range []string{"2024-01-01T00:00:03.000Z", "2024-01-01T00:00:01.000Z", "2024-01-01T00:00:02.000Z"} {
		s.Add(ctx, model.LogEntry{Level: model.LevelInfo, Message: ts, Timestamp: ts})
	}

	ids, err := s.Oldest(ctx, 2)
	if err != nil {
		t.Fatalf("Oldest failed: %v", err)
	}
	if err := s.Delete(ctx, ids); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	left, _ := s.Query(ctx, storage.QueryParams{})
	if len(left) != 1 || left[0].Timestamp != "2024-01-01T00:00:03.000Z" {
		t.Errorf("Expected only the newest entry to survive, got %v", left)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if n, _ := s.Count(ctx); n != 0 {
		t.Errorf("Expected empty table, got %d", n)
	}
}

func TestOpen_InvalidTable(t *testing.T) {
	if _, err := Open(context.Background(), filepath.Join(t.TempDir(), "x.db"), "logs; DROP"); err == nil {
		t.Error("Expected error for invalid table name")
	}
}

func TestStore_CorruptRowIsReported(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+` (level, message, timestamp, metadata) VALUES (?, ?, ?, ?)`,
		"info", "bad metadata", "2024-01-01T00:00:01.000Z", "{not json"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := s.Query(ctx, storage.QueryParams{}); err == nil {
		t.Error("Expected an error for undecodable metadata")
	}

	s.Clear(ctx)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+` (level, message, timestamp) VALUES (?, ?, ?)`,
		"fatal", "bad level", "2024-01-01T00:00:02.000Z"); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if _, err := s.Query(ctx, storage.QueryParams{}); err == nil {
		t.Error("Expected an error for an unknown level")
	}
}
