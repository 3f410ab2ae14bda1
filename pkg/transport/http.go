package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"
	"github.com/predatorx7/logtopus/pkg/diag"
	"github.com/predatorx7/logtopus/pkg/model"
	"go.uber.org/zap"
)

const (
	DefaultBatchSize     = 10
	DefaultBatchInterval = 5 * time.Second

	HeaderAPIKey     = "X-API-Key"
	HeaderInstanceID = "X-Instance-ID"
)

// ErrMissingEndpoint is returned by NewHTTP when no endpoint is configured.
var ErrMissingEndpoint = errors.New("http transport: endpoint is required")

// HTTPConfig configures the HTTP batch transport.
type HTTPConfig struct {
	Endpoint string
	// Headers are added to every request after Content-Type: application/json.
	Headers   map[string]string
	BatchSize int
	// BatchInterval is the flush timer period. Negative disables the timer.
	BatchInterval time.Duration
	Client        *http.Client
	// Compress gzips request bodies.
	Compress bool
	// APIKey, when set, is sent as X-API-Key.
	APIKey   string
	Now      func() time.Time
	ErrorLog *zap.Logger
}

// HTTP buffers entries and POSTs them as a JSON array, either when BatchSize
// entries are buffered or when the batch timer fires.
//
// A failed send puts the batch back in front of anything logged meanwhile,
// so nothing is lost while the process lives and order is kept. There is no
// retry loop: the next trigger simply tries again with a bigger batch.
type HTTP struct {
	endpoint   string
	headers    http.Header
	batchSize  int
	client     *http.Client
	compress   bool
	instanceID string
	now        func() time.Time
	errLog     *zap.Logger

	// buffer holds entries already encoded as JSON objects. An entry that
	// cannot be encoded is dropped in Log and never reaches a batch.
	mu     sync.Mutex
	buffer []json.RawMessage

	// sendMu keeps at most one batch in flight so a re-queued batch always
	// goes out before entries logged after it.
	sendMu sync.Mutex
	// sizeSend is set while a size-triggered send is pending or running.
	sizeSend atomic.Bool

	ticker    *time.Ticker
	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchInterval == 0 {
		cfg.BatchInterval = DefaultBatchInterval
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		headers.Set(k, v)
	}
	if cfg.APIKey != "" {
		headers.Set(HeaderAPIKey, cfg.APIKey)
	}

	t := &HTTP{
		endpoint:   cfg.Endpoint,
		headers:    headers,
		batchSize:  cfg.BatchSize,
		client:     cfg.Client,
		compress:   cfg.Compress,
		instanceID: uuid.NewString(),
		now:        cfg.Now,
		errLog:     diag.Or(cfg.ErrorLog).Named("http"),
		done:       make(chan struct{}),
	}

	if cfg.BatchInterval > 0 {
		t.ticker = time.NewTicker(cfg.BatchInterval)
		t.wg.Add(1)
		go t.runTimer()
	}
	return t, nil
}

// InstanceID identifies this transport to the collector.
func (t *HTTP) InstanceID() string {
	return t.instanceID
}

func (t *HTTP) runTimer() {
	defer t.wg.Done()
	for {
		select {
		case <-t.ticker.C:
			t.sendBatch(context.Background())
		case <-t.done:
			return
		}
	}
}

// Log buffers the entry and starts a send when the batch is full.
func (t *HTTP) Log(level model.Level, message string, metadata, logCtx model.Fields) {
	entry := model.NewEntry(level, message, metadata, logCtx, t.now())
	encoded, err := json.Marshal(entry)
	if err != nil {
		t.errLog.Error("dropping log entry that cannot be encoded",
			zap.String("message", message),
			zap.Error(err))
		return
	}

	t.mu.Lock()
	t.buffer = append(t.buffer, encoded)
	full := len(t.buffer) >= t.batchSize
	t.mu.Unlock()

	if full && !t.isClosed() && t.sizeSend.CompareAndSwap(false, true) {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			defer t.sizeSend.Store(false)
			t.sendBatch(context.Background())
		}()
	}
}

func (t *HTTP) isClosed() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Pending returns the number of buffered, unsent entries.
func (t *HTTP) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.buffer)
}

// Flush sends whatever is buffered now. On failure the entries stay buffered
// and the delivery error is returned.
func (t *HTTP) Flush(ctx context.Context) error {
	return t.sendBatch(ctx)
}

// Close stops the timer and makes one final flush attempt.
func (t *HTTP) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		if t.ticker != nil {
			t.ticker.Stop()
		}
		t.wg.Wait()
		err = t.sendBatch(context.Background())
	})
	return err
}

func (t *HTTP) sendBatch(ctx context.Context) error {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	batch := t.buffer
	t.buffer = nil
	t.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	if err := t.post(ctx, batch); err != nil {
		t.mu.Lock()
		t.buffer = append(batch, t.buffer...)
		pending := len(t.buffer)
		t.mu.Unlock()

		t.errLog.Warn("failed to send log batch",
			zap.String("endpoint", t.endpoint),
			zap.Int("batch", len(batch)),
			zap.Int("pending", pending),
			zap.Error(err))
		return err
	}
	return nil
}

func (t *HTTP) post(ctx context.Context, batch []json.RawMessage) error {
	data := encodeBatch(batch)

	var body bytes.Buffer
	if t.compress {
		zw := gzip.NewWriter(&body)
		if _, err := zw.Write(data); err != nil {
			return fmt.Errorf("failed to compress batch: %w", err)
		}
		if err := zw.Close(); err != nil {
			return fmt.Errorf("failed to compress batch: %w", err)
		}
	} else {
		body.Write(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, &body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header = t.headers.Clone()
	req.Header.Set(HeaderInstanceID, t.instanceID)
	if t.compress {
		req.Header.Set("Content-Encoding", "gzip")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// encodeBatch joins pre-encoded entries into a JSON array.
func encodeBatch(batch []json.RawMessage) []byte {
	data := []byte{'['}
	for i, e := range batch {
		if i > 0 {
			data = append(data, ',')
		}
		data = append(data, e...)
	}
	return append(data, ']')
}
