package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/predatorx7/logtopus/pkg/auth"
	"github.com/predatorx7/logtopus/pkg/broker"
	"github.com/predatorx7/logtopus/pkg/model"
	"go.uber.org/zap"
)

// MockBroker for testing Handler
type MockBroker struct {
	PublishedLogs []model.LogEntry
	PublishErr    error
}

func (m *MockBroker) Publish(ctx context.Context, logs []model.LogEntry) error {
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.PublishedLogs = append(m.PublishedLogs, logs...)
	return nil
}

func (m *MockBroker) Subscribe(ctx context.Context) (<-chan []model.LogEntry, error) {
	return nil, nil
}

func (m *MockBroker) Stats() broker.Stats {
	return broker.Stats{Ingested: uint64(len(m.PublishedLogs))}
}

func (m *MockBroker) Close() error { return nil }

// Ensure the MockBroker satisfies the interface
var _ broker.Broker = &MockBroker{}

func mockVerifierValid(key string) (bool, string, error) {
	return true, "test-client", nil
}

func mockVerifierInvalid(key string) (bool, string, error) {
	return false, "", nil
}

func mockVerifierError(key string) (bool, string, error) {
	return false, "", errors.New("verify error")
}

var fixedNow = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

func newTestRouter(b *MockBroker, verify auth.Verifier) http.Handler {
	h := NewHandler(b, zap.NewNop())
	h.Now = func() time.Time { return fixedNow }
	return NewRouter(b, h, verify)
}

func post(router http.Handler, body []byte, key string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", "/v1/logs", bytes.NewReader(body))
	req.RemoteAddr = "192.0.2.10:51234"
	if key != "" {
		req.Header.Set("X-API-Key", key)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHandler_HandleLogs(t *testing.T) {
	mockBroker := &MockBroker{}
	router := newTestRouter(mockBroker, mockVerifierValid)

	body := []byte(`[
		{"message":"msg1","level":"warn","timestamp":"2024-01-01T00:00:00.000Z","metadata":{"n":1,"tags":["a"]}},
		{"message":"msg2","context":{"user":"u-1"}}
	]`)

	// Case 1: Success
	w := post(router, body, "valid-key")
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != `{"status":"accepted"}` {
		t.Errorf("Unexpected body: %s", w.Body.String())
	}
	if len(mockBroker.PublishedLogs) != 2 {
		t.Fatalf("Expected 2 logs published, got %d", len(mockBroker.PublishedLogs))
	}

	first, second := mockBroker.PublishedLogs[0], mockBroker.PublishedLogs[1]
	if first.Level != model.LevelWarn || first.Timestamp != "2024-01-01T00:00:00.000Z" {
		t.Errorf("Unexpected first entry: %+v", first)
	}
	if first.Metadata["n"] != float64(1) {
		t.Errorf("Expected numeric metadata, got %v", first.Metadata["n"])
	}
	if second.Level != model.LevelInfo {
		t.Errorf("Expected default level info, got %s", second.Level)
	}
	if second.Timestamp != "2024-05-06T07:08:09.000Z" {
		t.Errorf("Expected default timestamp now, got %s", second.Timestamp)
	}
	if second.Context["user"] != "u-1" {
		t.Errorf("Expected context, got %v", second.Context)
	}
	if first.ClientID != "test-client" || first.ClientIP != "192.0.2.10" {
		t.Errorf("Expected enrichment, got client %q ip %q", first.ClientID, first.ClientIP)
	}

	// Case 2: Missing API Key
	if w := post(router, body, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 on missing key, got %d", w.Code)
	}

	// Case 3: Invalid API Key
	if w := post(newTestRouter(mockBroker, mockVerifierInvalid), body, "invalid-key"); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 on invalid key, got %d", w.Code)
	}
	if w := post(newTestRouter(mockBroker, mockVerifierError), body, "any-key"); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 on verifier error, got %d", w.Code)
	}

	// Case 4: Invalid JSON
	if w := post(router, []byte("{bad json"), "valid-key"); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 on bad json, got %d", w.Code)
	}

	// Case 5: Broker Error
	mockBroker.PublishErr = errors.New("broker fail")
	if w := post(router, body, "valid-key"); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 on broker error, got %d", w.Code)
	}
}

func TestHandler_SingleObject(t *testing.T) {
	mockBroker := &MockBroker{}
	router := newTestRouter(mockBroker, mockVerifierValid)

	w := post(router, []byte(`{"message":"solo","level":"ERROR"}`), "k")
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}
	if len(mockBroker.PublishedLogs) != 1 || mockBroker.PublishedLogs[0].Level != model.LevelError {
		t.Errorf("Unexpected published logs: %v", mockBroker.PublishedLogs)
	}
}

func TestHandler_RejectsBadEntries(t *testing.T) {
	router := newTestRouter(&MockBroker{}, mockVerifierValid)

	for _, body := range []string{
		`"just a string"`,
		`[1, 2]`,
		`[{"message":"x","level":"loud"}]`,
		`[{"message":"x","metadata":[1]}]`,
	} {
		if w := post(router, []byte(body), "k"); w.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for %s, got %d", body, w.Code)
		}
	}
}

func TestHandler_Gzip(t *testing.T) {
	mockBroker := &MockBroker{}
	router := newTestRouter(mockBroker, mockVerifierValid)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	json.NewEncoder(zw).Encode([]model.LogEntry{{Level: model.LevelDebug, Message: "zipped", Timestamp: "2024-01-01T00:00:00.000Z"}})
	zw.Close()

	w := post(router, buf.Bytes(), "k", "Content-Encoding", "gzip")
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}
	if len(mockBroker.PublishedLogs) != 1 || mockBroker.PublishedLogs[0].Message != "zipped" {
		t.Errorf("Unexpected published logs: %v", mockBroker.PublishedLogs)
	}

	if w := post(router, []byte("not gzip"), "k", "Content-Encoding", "gzip"); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for corrupt gzip, got %d", w.Code)
	}
}

func TestHandler_BodyLimit(t *testing.T) {
	b := &MockBroker{}
	h := NewHandler(b, zap.NewNop())
	h.MaxBodyBytes = 16
	router := NewRouter(b, h, mockVerifierValid)

	if w := post(router, []byte(`[{"message":"this is far too long"}]`), "k"); w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected 413, got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	b := broker.NewMemoryBroker(0)
	b.Publish(context.Background(), []model.LogEntry{{Message: "a"}, {Message: "b"}})

	w := httptest.NewRecorder()
	HandleStatus(b)(w, httptest.NewRequest("GET", "/status", nil))

	var resp StatusResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Invalid status body: %v", err)
	}
	if resp.Status != "ok" || resp.IngestedLogs != 2 || resp.DroppedLogs != 0 {
		t.Errorf("Unexpected status: %+v", resp)
	}
}

func TestLoadConfig(t *testing.T) {
	env := map[string]string{
		"ENABLE_FILE_LOGGING": "true",
		"FILE_LOG_DIR":        "/var/log/collector",
		"BROKER_BUFFER":       "50",
	}
	cfg := LoadConfig(func(k string) string { return env[k] })

	if cfg.Port != "8080" {
		t.Errorf("Expected default port, got %s", cfg.Port)
	}
	if !cfg.EnableFileLogging || cfg.FileLogDir != "/var/log/collector" {
		t.Errorf("Unexpected file settings: %+v", cfg)
	}
	if cfg.EnableClickHouse || cfg.ClickHouseDSN == "" {
		t.Errorf("Unexpected clickhouse settings: %+v", cfg)
	}
	if cfg.BrokerBuffer != 50 {
		t.Errorf("Expected broker buffer 50, got %d", cfg.BrokerBuffer)
	}
}
