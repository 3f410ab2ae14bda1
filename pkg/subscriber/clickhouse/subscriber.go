// Package clickhouse stores collected entries in ClickHouse.
package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/predatorx7/logtopus/pkg/broker"
	"github.com/predatorx7/logtopus/pkg/diag"
	"github.com/predatorx7/logtopus/pkg/model"
	"github.com/predatorx7/logtopus/pkg/subscriber"
	"go.uber.org/zap"
)

const (
	defaultRetryInterval = 5 * time.Second
	insertTimeout        = 10 * time.Second
)

type Subscriber struct {
	Broker broker.Subscriber
	DSN    string
	// RetryInterval spaces connection attempts, default 5s.
	RetryInterval time.Duration
	log           *zap.Logger
	conn          driver.Conn
}

func NewSubscriber(b broker.Subscriber, dsn string, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		Broker:        b,
		DSN:           dsn,
		RetryInterval: defaultRetryInterval,
		log:           diag.Or(logger).Named("clickhouse"),
	}
}

// Start connects, retrying until ctx is done, then inserts every batch.
func (s *Subscriber) Start(ctx context.Context) error {
	s.log.Info("starting clickhouse subscriber")

	opts, err := clickhouse.ParseDSN(s.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse DSN: %w", err)
	}

	for {
		conn, err := clickhouse.Open(opts)
		if err == nil {
			if err = conn.Ping(ctx); err == nil {
				s.conn = conn
				break
			}
			_ = conn.Close()
		}

		s.log.Warn("connection failed, retrying", zap.Duration("in", s.RetryInterval), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.RetryInterval):
		}
	}
	defer s.conn.Close()
	s.log.Info("connected", zap.Strings("addr", opts.Addr))

	return subscriber.Consume(ctx, s.Broker, s.insertBatch)
}

func (s *Subscriber) insertBatch(ctx context.Context, batch []model.LogEntry) {
	if len(batch) == 0 {
		return
	}

	start := time.Now()
	batchCtx, cancel := context.WithTimeout(ctx, insertTimeout)
	defer cancel()

	b, err := s.conn.PrepareBatch(batchCtx, "INSERT INTO "+tableName)
	if err != nil {
		s.log.Error("failed to prepare batch", zap.Error(err))
		return
	}

	for _, entry := range batch {
		if err := b.Append(row(entry)...); err != nil {
			s.log.Error("failed to append to batch", zap.Error(err))
			_ = b.Abort()
			return
		}
	}

	if err := b.Send(); err != nil {
		s.log.Error("failed to send batch", zap.Int("rows", len(batch)), zap.Error(err))
		return
	}
	s.log.Debug("inserted batch", zap.Int("rows", len(batch)), zap.Duration("took", time.Since(start)))
}

// row returns the column values for entry in table order. Unparseable
// timestamps fall back to the zero time rather than dropping the row.
func row(entry model.LogEntry) []any {
	return []any{
		entry.Time(),
		entry.Level.String(),
		entry.Message,
		encodeFields(entry.Metadata),
		encodeFields(entry.Context),
		entry.ClientID,
		entry.ClientIP,
	}
}

func encodeFields(f model.Fields) string {
	if len(f) == 0 {
		return "{}"
	}
	data, err := json.Marshal(f)
	if err != nil {
		return "{}"
	}
	return string(data)
}
