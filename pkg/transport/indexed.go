package transport

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/predatorx7/logtopus/pkg/diag"
	"github.com/predatorx7/logtopus/pkg/model"
	"github.com/predatorx7/logtopus/pkg/storage"
	"go.uber.org/zap"
)

// DefaultIndexedMaxLogs bounds the indexed store.
const DefaultIndexedMaxLogs = 10000

// State is the lifecycle of an Indexed transport.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	// StateUnavailable means no store exists; every operation is a no-op.
	StateUnavailable
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// IndexedConfig configures the indexed transport.
type IndexedConfig struct {
	// Open opens the backing store. A nil Open, or one returning
	// storage.ErrUnavailable, leaves the transport unavailable.
	Open     storage.Opener
	MaxLogs  int
	Now      func() time.Time
	ErrorLog *zap.Logger
}

// Indexed persists entries to an asynchronous auto-incrementing store.
//
// The store is opened in the background. Entries logged before it is ready
// are queued and written in FIFO order once it is. Every write is followed by
// an eviction pass deleting the oldest entries beyond MaxLogs.
type Indexed struct {
	maxLogs int
	now     func() time.Time
	errLog  *zap.Logger

	mu      sync.Mutex
	state   State
	store   storage.Indexed
	queue   []model.LogEntry
	pending int           // queued or being written
	idle    chan struct{} // closed when pending drops to zero
	closed  bool

	wake    chan struct{}
	done    chan struct{}
	stopped chan struct{}
	// cancelOpen aborts an opener still running at Close.
	cancelOpen context.CancelFunc
}

func NewIndexed(cfg IndexedConfig) *Indexed {
	if cfg.MaxLogs <= 0 {
		cfg.MaxLogs = DefaultIndexedMaxLogs
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	idle := make(chan struct{})
	close(idle)

	t := &Indexed{
		maxLogs: cfg.MaxLogs,
		now:     cfg.Now,
		errLog:  diag.Or(cfg.ErrorLog).Named("indexed"),
		state:   StateUninitialized,
		idle:    idle,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if cfg.Open == nil {
		t.state = StateUnavailable
		t.cancelOpen = func() {}
		close(t.stopped)
		return t
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancelOpen = cancel
	t.state = StateInitializing
	go t.open(ctx, cfg.Open)
	return t
}

// State returns the current lifecycle state.
func (t *Indexed) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Indexed) open(ctx context.Context, opener storage.Opener) {
	defer close(t.stopped)

	store, err := opener(ctx)
	if err != nil {
		if !errors.Is(err, storage.ErrUnavailable) && !errors.Is(err, context.Canceled) {
			t.errLog.Error("failed to open indexed store", zap.Error(err))
		}
		t.mu.Lock()
		t.state = StateUnavailable
		t.queue = nil
		t.setPending(0)
		t.mu.Unlock()
		return
	}

	t.mu.Lock()
	t.store = store
	t.state = StateReady
	t.mu.Unlock()

	t.run()
}

func (t *Indexed) run() {
	for {
		t.drain()
		select {
		case <-t.wake:
		case <-t.done:
			t.drain()
			return
		}
	}
}

// drain writes queued entries until the queue is empty.
func (t *Indexed) drain() {
	for {
		t.mu.Lock()
		batch := t.queue
		t.queue = nil
		t.mu.Unlock()

		if len(batch) == 0 {
			return
		}
		for _, entry := range batch {
			t.persist(entry)
		}

		t.mu.Lock()
		t.setPending(t.pending - len(batch))
		t.mu.Unlock()
	}
}

// setPending must be called with mu held.
func (t *Indexed) setPending(n int) {
	if n < 0 {
		n = 0
	}
	if t.pending == 0 && n > 0 {
		t.idle = make(chan struct{})
	}
	if t.pending > 0 && n == 0 {
		close(t.idle)
	}
	t.pending = n
}

func (t *Indexed) persist(entry model.LogEntry) {
	if _, err := t.store.Add(context.Background(), entry); err != nil {
		t.errLog.Error("failed to persist log entry", zap.Error(err))
		return
	}
	t.evict()
}

func (t *Indexed) evict() {
	count, err := t.store.Count(context.Background())
	if err != nil {
		t.errLog.Error("failed to count entries", zap.Error(err))
		return
	}
	if count <= t.maxLogs {
		return
	}
	ids, err := t.store.Oldest(context.Background(), count-t.maxLogs)
	if err != nil {
		t.errLog.Error("failed to select entries to evict", zap.Error(err))
		return
	}
	if err := t.store.Delete(context.Background(), ids); err != nil {
		t.errLog.Error("failed to evict entries", zap.Int("count", len(ids)), zap.Error(err))
	}
}

// Log queues the entry and returns immediately.
func (t *Indexed) Log(level model.Level, message string, metadata, logCtx model.Fields) {
	entry := model.NewEntry(level, message, metadata, logCtx, t.now())

	t.mu.Lock()
	if t.state == StateUnavailable || t.closed {
		t.mu.Unlock()
		return
	}
	t.queue = append(t.queue, entry)
	t.setPending(t.pending + 1)
	t.mu.Unlock()

	select {
	case t.wake <- struct{}{}:
	default:
	}
}

func (t *Indexed) readyStore() storage.Indexed {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != StateReady {
		return nil
	}
	return t.store
}

// Query returns stored entries matching params, newest-first. Entries still
// queued are not visible; call Flush first to include them.
func (t *Indexed) Query(ctx context.Context, params storage.QueryParams) []model.LogEntry {
	store := t.readyStore()
	if store == nil {
		return nil
	}
	entries, err := store.Query(ctx, params)
	if err != nil {
		t.errLog.Error("failed to query entries", zap.Error(err))
		return nil
	}
	return entries
}

// ByLevel returns up to limit entries of one level, newest-first.
func (t *Indexed) ByLevel(ctx context.Context, level model.Level, limit int) []model.LogEntry {
	return t.Query(ctx, storage.QueryParams{Level: level, Limit: limit})
}

// Recent returns the limit most recent entries.
func (t *Indexed) Recent(ctx context.Context, limit int) []model.LogEntry {
	return t.Query(ctx, storage.QueryParams{Limit: limit})
}

// Logs returns every stored entry, newest-first.
func (t *Indexed) Logs() []model.LogEntry {
	return t.Query(context.Background(), storage.QueryParams{})
}

// Clear drops queued entries and empties the store.
func (t *Indexed) Clear() {
	t.mu.Lock()
	t.setPending(t.pending - len(t.queue))
	t.queue = nil
	t.mu.Unlock()

	store := t.readyStore()
	if store == nil {
		return
	}
	if err := store.Clear(context.Background()); err != nil {
		t.errLog.Error("failed to clear store", zap.Error(err))
	}
}

// Flush waits until every queued entry has been written, or ctx is done.
func (t *Indexed) Flush(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close writes what is queued, stops the worker and closes the store.
func (t *Indexed) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.cancelOpen()
	close(t.done)
	<-t.stopped

	t.mu.Lock()
	store := t.store
	t.state = StateUnavailable
	t.mu.Unlock()

	if store != nil {
		return store.Close()
	}
	return nil
}
