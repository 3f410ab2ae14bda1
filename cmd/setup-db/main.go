package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/predatorx7/logtopus/pkg/diag"
	"github.com/predatorx7/logtopus/pkg/subscriber/clickhouse"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	ttlDays := flag.Int("ttl-days", 3, "Days to keep collected logs")
	timeout := flag.Duration("timeout", 30*time.Second, "Setup timeout")
	flag.Parse()

	log := diag.New(zapcore.Lock(os.Stderr), true).Named("setup-db")
	defer log.Sync()

	dsn := os.Getenv("CLICKHOUSE_DSN")
	if dsn == "" {
		dsn = "clickhouse://default:@localhost:9000/logtopus"
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	log.Info("starting clickhouse setup", zap.Int("ttl_days", *ttlDays))
	if err := clickhouse.Setup(ctx, clickhouse.Config{DSN: dsn, TTLDays: *ttlDays, Logger: log}); err != nil {
		log.Fatal("clickhouse setup failed", zap.Error(err))
	}
	log.Info("database setup completed")
}
