package main

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/predatorx7/logtopus/pkg/auth"
	"github.com/predatorx7/logtopus/pkg/broker"
	"github.com/predatorx7/logtopus/pkg/model"
	"github.com/valyala/fastjson"
	"go.uber.org/zap"
)

// defaultMaxBodyBytes bounds a decompressed request body.
const defaultMaxBodyBytes = 5 << 20

var errBodyTooLarge = errors.New("request body too large")

type Handler struct {
	Broker       broker.Publisher
	Log          *zap.Logger
	Now          func() time.Time
	MaxBodyBytes int64

	parsers fastjson.ParserPool
}

func NewHandler(b broker.Publisher, log *zap.Logger) *Handler {
	return &Handler{
		Broker:       b,
		Log:          log,
		Now:          time.Now,
		MaxBodyBytes: defaultMaxBodyBytes,
	}
}

// HandleLogs accepts a JSON array of entries, or a single entry, and
// publishes them. Authentication is done by auth.Middleware.
func (h *Handler) HandleLogs(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, "Invalid Payload", status)
		return
	}

	p := h.parsers.Get()
	defer h.parsers.Put(p)

	logs, err := parseEntries(p, body, h.Now())
	if err != nil {
		h.Log.Debug("rejected payload", zap.Error(err))
		http.Error(w, "Invalid Payload", http.StatusBadRequest)
		return
	}

	clientID, _ := auth.ClientID(r.Context())
	clientIP := remoteIP(r.RemoteAddr)
	for i := range logs {
		logs[i].ClientID = clientID
		logs[i].ClientIP = clientIP
	}

	if err := h.Broker.Publish(r.Context(), logs); err != nil {
		h.Log.Error("failed to publish batch", zap.Int("count", len(logs)), zap.Error(err))
		http.Error(w, "Failed to ingest logs", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	w.Write([]byte(`{"status":"accepted"}`))
}

func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	var src io.Reader = r.Body
	if r.Header.Get("Content-Encoding") == "gzip" {
		zr, err := gzip.NewReader(r.Body)
		if err != nil {
			return nil, fmt.Errorf("invalid gzip body: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	data, err := io.ReadAll(io.LimitReader(src, h.MaxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.MaxBodyBytes {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// parseEntries decodes an array of entries or a single entry. A missing level
// defaults to info and a missing timestamp to now.
func parseEntries(p *fastjson.Parser, body []byte, now time.Time) ([]model.LogEntry, error) {
	v, err := p.ParseBytes(body)
	if err != nil {
		return nil, err
	}

	var items []*fastjson.Value
	switch v.Type() {
	case fastjson.TypeArray:
		items, _ = v.Array()
	case fastjson.TypeObject:
		items = []*fastjson.Value{v}
	default:
		return nil, fmt.Errorf("expected array or object, got %s", v.Type())
	}

	logs := make([]model.LogEntry, 0, len(items))
	for i, item := range items {
		entry, err := parseEntry(item, now)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		logs = append(logs, entry)
	}
	return logs, nil
}

func parseEntry(v *fastjson.Value, now time.Time) (model.LogEntry, error) {
	if v.Type() != fastjson.TypeObject {
		return model.LogEntry{}, fmt.Errorf("expected object, got %s", v.Type())
	}

	entry := model.LogEntry{
		Level:     model.LevelInfo,
		Message:   string(v.GetStringBytes("message")),
		Timestamp: string(v.GetStringBytes("timestamp")),
	}
	if level := v.GetStringBytes("level"); len(level) > 0 {
		l, err := model.ParseLevel(string(level))
		if err != nil {
			return entry, err
		}
		entry.Level = l
	}
	if entry.Timestamp == "" {
		entry.Timestamp = model.FormatISO(now)
	}

	var err error
	if entry.Metadata, err = fieldsOf(v.Get("metadata")); err != nil {
		return entry, fmt.Errorf("metadata: %w", err)
	}
	if entry.Context, err = fieldsOf(v.Get("context")); err != nil {
		return entry, fmt.Errorf("context: %w", err)
	}
	return entry, nil
}

func fieldsOf(v *fastjson.Value) (model.Fields, error) {
	if v == nil || v.Type() == fastjson.TypeNull {
		return nil, nil
	}
	obj, err := v.Object()
	if err != nil {
		return nil, err
	}
	if obj.Len() == 0 {
		return nil, nil
	}
	out := make(model.Fields, obj.Len())
	obj.Visit(func(key []byte, val *fastjson.Value) {
		out[string(key)] = valueOf(val)
	})
	return out, nil
}

// valueOf converts a parsed value to the types encoding/json would produce.
func valueOf(v *fastjson.Value) any {
	switch v.Type() {
	case fastjson.TypeObject:
		obj, _ := v.Object()
		m := make(map[string]any, obj.Len())
		obj.Visit(func(key []byte, val *fastjson.Value) {
			m[string(key)] = valueOf(val)
		})
		return m
	case fastjson.TypeArray:
		arr, _ := v.Array()
		out := make([]any, len(arr))
		for i, item := range arr {
			out[i] = valueOf(item)
		}
		return out
	case fastjson.TypeString:
		return string(v.GetStringBytes())
	case fastjson.TypeNumber:
		return v.GetFloat64()
	case fastjson.TypeTrue:
		return true
	case fastjson.TypeFalse:
		return false
	default:
		return nil
	}
}

func remoteIP(addr string) string {
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
