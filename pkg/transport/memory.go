package transport

import (
	"slices"
	"sync"
	"time"

	"github.com/predatorx7/logtopus/pkg/model"
)

// DefaultMemoryMaxLogs bounds the memory ring buffer.
const DefaultMemoryMaxLogs = 100

// MemoryConfig configures the memory transport.
type MemoryConfig struct {
	MaxLogs int
	Now     func() time.Time
}

// Memory keeps the MaxLogs most recent entries in insertion order.
type Memory struct {
	mu      sync.Mutex
	entries []model.LogEntry
	maxLogs int
	now     func() time.Time
}

func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.MaxLogs <= 0 {
		cfg.MaxLogs = DefaultMemoryMaxLogs
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Memory{
		entries: make([]model.LogEntry, 0, cfg.MaxLogs),
		maxLogs: cfg.MaxLogs,
		now:     cfg.Now,
	}
}

func (m *Memory) Log(level model.Level, message string, metadata, context model.Fields) {
	entry := model.NewEntry(level, message, metadata, context, m.now())

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) >= m.maxLogs {
		m.entries = slices.Delete(m.entries, 0, len(m.entries)-m.maxLogs+1)
	}
	m.entries = append(m.entries, entry)
}

// Logs returns the retained entries, oldest first.
func (m *Memory) Logs() []model.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.entries)
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = m.entries[:0]
}

// Len returns the number of retained entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
