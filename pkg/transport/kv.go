package transport

import (
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/predatorx7/logtopus/pkg/diag"
	"github.com/predatorx7/logtopus/pkg/model"
	"github.com/predatorx7/logtopus/pkg/storage"
	"github.com/predatorx7/logtopus/pkg/storage/memory"
	"go.uber.org/zap"
)

const (
	DefaultStorageKey = "app_logs"
	DefaultKVMaxLogs  = 100
)

// KeyValueConfig configures the persistent key/value transport.
type KeyValueConfig struct {
	// Store defaults to a process-local map.
	Store    storage.KeyValue
	Key      string
	MaxLogs  int
	Now      func() time.Time
	ErrorLog *zap.Logger
}

// KeyValue persists the whole log list as one JSON array under Key, most
// recent first. Every Log is a read-modify-write of that blob; the list is
// bounded by MaxLogs so the cost stays bounded too.
type KeyValue struct {
	mu      sync.Mutex
	store   storage.KeyValue
	key     string
	maxLogs int
	now     func() time.Time
	errLog  *zap.Logger
}

func NewKeyValue(cfg KeyValueConfig) *KeyValue {
	if cfg.Store == nil {
		cfg.Store = memory.NewKeyValue()
	}
	if cfg.Key == "" {
		cfg.Key = DefaultStorageKey
	}
	if cfg.MaxLogs <= 0 {
		cfg.MaxLogs = DefaultKVMaxLogs
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &KeyValue{
		store:   cfg.Store,
		key:     cfg.Key,
		maxLogs: cfg.MaxLogs,
		now:     cfg.Now,
		errLog:  diag.Or(cfg.ErrorLog).Named("kv"),
	}
}

func (t *KeyValue) Log(level model.Level, message string, metadata, logCtx model.Fields) {
	entry := model.NewEntry(level, message, metadata, logCtx, t.now())

	t.mu.Lock()
	defer t.mu.Unlock()

	raw, err := t.read()
	if err != nil {
		// The stored list is still there; writing now would replace it.
		t.errLog.Error("failed to read stored logs, entry dropped",
			zap.String("key", t.key),
			zap.String("message", message),
			zap.Error(err))
		return
	}
	entries, err := decodeEntries(raw)
	if err != nil {
		t.errLog.Error("failed to decode stored logs", zap.String("key", t.key), zap.Error(err))
		entries = nil
	}

	entries = append([]model.LogEntry{entry}, entries...)
	if len(entries) > t.maxLogs {
		entries = entries[:t.maxLogs]
	}

	data, err := json.Marshal(entries)
	if err != nil {
		t.errLog.Error("failed to encode logs", zap.String("key", t.key), zap.Error(err))
		return
	}
	if err := t.store.Set(t.key, string(data)); err != nil {
		t.errLog.Error("failed to store logs", zap.String("key", t.key), zap.Error(err))
	}
}

// Logs returns the stored list, most recent first.
func (t *KeyValue) Logs() []model.LogEntry {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, err := t.load()
	if err != nil {
		t.errLog.Error("failed to read stored logs", zap.String("key", t.key), zap.Error(err))
		return nil
	}
	return entries
}

// Clear deletes the key.
func (t *KeyValue) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.store.Remove(t.key); err != nil {
		t.errLog.Error("failed to clear stored logs", zap.String("key", t.key), zap.Error(err))
	}
}

// Close releases the backing store when it holds resources.
func (t *KeyValue) Close() error {
	if c, ok := t.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *KeyValue) load() ([]model.LogEntry, error) {
	raw, err := t.read()
	if err != nil {
		return nil, err
	}
	return decodeEntries(raw)
}

func (t *KeyValue) read() (string, error) {
	raw, ok, err := t.store.Get(t.key)
	if err != nil || !ok {
		return "", err
	}
	return raw, nil
}

func decodeEntries(raw string) ([]model.LogEntry, error) {
	if raw == "" {
		return nil, nil
	}
	var entries []model.LogEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
