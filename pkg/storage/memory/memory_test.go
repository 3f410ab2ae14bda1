package memory

import (
	"context"
	"testing"

	"github.com/predatorx7/logtopus/pkg/model"
	"github.com/predatorx7/logtopus/pkg/storage"
)

func entry(level model.Level, msg, ts string) model.LogEntry {
	return model.LogEntry{Level: level, Message: msg, Timestamp: ts}
}

func TestIndexed_AddQuery(t *testing.T) {
	ctx := context.Background()
	s := NewIndexed()

	s.Add(ctx, entry(model.LevelInfo, "a", "2024-01-01T00:00:01.000Z"))
	s.Add(ctx, entry(model.LevelError, "b", "2024-01-01T00:00:02.000Z"))
	id, _ := s.Add(ctx, entry(model.LevelInfo, "c", "2024-01-01T00:00:03.000Z"))
	if id != 3 {
		t.Errorf("Expected auto-increment id 3, got %d", id)
	}

	all, _ := s.Query(ctx, storage.QueryParams{})
	if len(all) != 3 || all[0].Message != "c" || all[2].Message != "a" {
		t.Errorf("Expected newest-first [c b a], got %v", all)
	}

	infos, _ := s.Query(ctx, storage.QueryParams{Level: model.LevelInfo, Limit: 1})
	if len(infos) != 1 || infos[0].Message != "c" {
		t.Errorf("Expected [c], got %v", infos)
	}

	ranged, _ := s.Query(ctx, storage.QueryParams{From: "2024-01-01T00:00:02.000Z", To: "2024-01-01T00:00:03.000Z"})
	if len(ranged) != 2 {
		t.Errorf("Expected inclusive range of 2, got %d", len(ranged))
	}
}

func TestIndexed_OldestDelete(t *testing.T) {
	ctx := context.Background()
	s := NewIndexed()

	// inserted out of timestamp order
	s.Add(ctx, entry(model.LevelInfo, "late", "2024-01-01T00:00:09.000Z"))
	s.Add(ctx, entry(model.LevelInfo, "early", "2024-01-01T00:00:01.000Z"))
	s.Add(ctx, entry(model.LevelInfo, "mid", "2024-01-01T00:00:05.000Z"))

	ids, _ := s.Oldest(ctx, 2)
	if len(ids) != 2 || ids[0] != 2 || ids[1] != 3 {
		t.Fatalf("Expected oldest ids [2 3], got %v", ids)
	}
	if err := s.Delete(ctx, ids); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n, _ := s.Count(ctx); n != 1 {
		t.Errorf("Expected 1 remaining, got %d", n)
	}
}

func TestKeyValue(t *testing.T) {
	kv := NewKeyValue()
	kv.Set("k", "v")
	if v, ok, _ := kv.Get("k"); !ok || v != "v" {
		t.Errorf("Expected v, got %q ok=%v", v, ok)
	}
	kv.Remove("k")
	if _, ok, _ := kv.Get("k"); ok {
		t.Error("Expected key removed")
	}
}
