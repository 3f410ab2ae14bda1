package broker

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/predatorx7/logtopus/pkg/model"
)

// DefaultBufferSize is the per-subscriber channel capacity, in batches.
const DefaultBufferSize = 2000

// MemoryBroker implements a simple in-memory pub/sub using channels.
// Publishing never blocks: a subscriber whose buffer is full misses the batch
// and the entries are counted as dropped.
type MemoryBroker struct {
	mu                          sync.RWMutex
	subscribers                 []chan []model.LogEntry
	bufferSize                  int
	closed                      bool
	done                        chan struct{}
	ingestedCount, droppedCount atomic.Uint64
}

// NewMemoryBroker creates a broker. A bufferSize <= 0 selects DefaultBufferSize.
func NewMemoryBroker(bufferSize int) *MemoryBroker {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &MemoryBroker{bufferSize: bufferSize, done: make(chan struct{})}
}

// Publish sends logs to all registered subscribers non-blocking.
func (b *MemoryBroker) Publish(ctx context.Context, logs []model.LogEntry) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}

	b.ingestedCount.Add(uint64(len(logs)))
	for _, sub := range b.subscribers {
		select {
		case sub <- logs:
		default:
			b.droppedCount.Add(uint64(len(logs)))
		}
	}
	return nil
}

// Subscribe returns a channel that receives log batches until ctx is done.
func (b *MemoryBroker) Subscribe(ctx context.Context) (<-chan []model.LogEntry, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}

	ch := make(chan []model.LogEntry, b.bufferSize)
	b.subscribers = append(b.subscribers, ch)

	go func() {
		select {
		case <-ctx.Done():
			b.unsubscribe(ch)
		case <-b.done:
		}
	}()
	return ch, nil
}

func (b *MemoryBroker) unsubscribe(ch chan []model.LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	i := slices.Index(b.subscribers, ch)
	if i < 0 {
		return
	}
	b.subscribers = slices.Delete(b.subscribers, i, i+1)
	close(ch)
}

// Close closes every subscriber channel. Batches already buffered can still
// be received.
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	close(b.done)
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
	return nil
}

// Stats returns the current metrics
func (b *MemoryBroker) Stats() Stats {
	b.mu.RLock()
	subs := len(b.subscribers)
	b.mu.RUnlock()
	return Stats{
		Ingested:    b.ingestedCount.Load(),
		Dropped:     b.droppedCount.Load(),
		Subscribers: subs,
	}
}
