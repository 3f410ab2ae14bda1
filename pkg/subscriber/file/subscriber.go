// Package file writes collected entries as JSON lines, one rotating file per
// client.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/predatorx7/logtopus/pkg/broker"
	"github.com/predatorx7/logtopus/pkg/diag"
	"github.com/predatorx7/logtopus/pkg/model"
	"github.com/predatorx7/logtopus/pkg/subscriber"
	"go.uber.org/zap"
	"gopkg.in/natefinch/lumberjack.v2"
)

const unknownClient = "unknown_client"

type Config struct {
	OutputDir  string
	MaxSizeMB  int // default 100
	MaxBackups int // default 10
	Compress   bool
	Logger     *zap.Logger
}

type Subscriber struct {
	Broker broker.Subscriber
	cfg    Config
	log    *zap.Logger

	mu      sync.Mutex
	writers map[string]*lumberjack.Logger
}

func NewSubscriber(b broker.Subscriber, cfg Config) *Subscriber {
	if cfg.MaxSizeMB <= 0 {
		cfg.MaxSizeMB = 100
	}
	if cfg.MaxBackups <= 0 {
		cfg.MaxBackups = 10
	}
	return &Subscriber{
		Broker:  b,
		cfg:     cfg,
		log:     diag.Or(cfg.Logger).Named("file-subscriber"),
		writers: make(map[string]*lumberjack.Logger),
	}
}

// Start consumes batches until ctx is done, then closes every open file.
func (s *Subscriber) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	s.log.Info("starting file subscriber", zap.String("dir", s.cfg.OutputDir))
	defer s.Close()

	return subscriber.Consume(ctx, s.Broker, s.processBatch)
}

func (s *Subscriber) processBatch(_ context.Context, batch []model.LogEntry) {
	grouped := make(map[string][]model.LogEntry)
	for _, entry := range batch {
		id := fileSafe(entry.ClientID)
		grouped[id] = append(grouped[id], entry)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for clientID, entries := range grouped {
		w := s.writer(clientID)
		var buf []byte
		for _, entry := range entries {
			data, err := json.Marshal(entry)
			if err != nil {
				s.log.Error("failed to encode entry", zap.String("client", clientID), zap.Error(err))
				continue
			}
			buf = append(append(buf, data...), '\n')
		}
		if _, err := w.Write(buf); err != nil {
			s.log.Error("failed to write entries",
				zap.String("file", w.Filename),
				zap.Int("count", len(entries)),
				zap.Error(err))
		}
	}
}

// writer must be called with mu held.
func (s *Subscriber) writer(clientID string) *lumberjack.Logger {
	if w, ok := s.writers[clientID]; ok {
		return w
	}
	w := &lumberjack.Logger{
		Filename:   filepath.Join(s.cfg.OutputDir, fmt.Sprintf("client_%s.jsonl", clientID)),
		MaxSize:    s.cfg.MaxSizeMB,
		MaxBackups: s.cfg.MaxBackups,
		Compress:   s.cfg.Compress,
	}
	s.writers[clientID] = w
	return w
}

// Close closes every open file. Start calls it on exit.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for id, w := range s.writers {
		if err := w.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(s.writers, id)
	}
	return firstErr
}

// fileSafe maps a client id to a file name component.
func fileSafe(clientID string) string {
	if clientID == "" {
		return unknownClient
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, clientID)
}
