package clickhouse

import (
	"context"
	"fmt"
	"regexp"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/predatorx7/logtopus/pkg/diag"
	"go.uber.org/zap"
)

const (
	tableName     = "logs"
	defaultDB     = "logtopus"
	defaultTTLDay = 3
)

var identifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds configuration for setting up ClickHouse.
type Config struct {
	DSN string
	// TTLDays expires rows this many days after their timestamp, default 3.
	TTLDays int
	Logger  *zap.Logger
}

// Schema returns the CREATE TABLE statement for db.
func Schema(db string, ttlDays int) string {
	// DateTime64(3) keeps millisecond precision.
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s (
			timestamp DateTime64(3),
			level LowCardinality(String),
			message String,
			metadata String,
			context String,
			client_id LowCardinality(String),
			client_ip String
		) ENGINE = MergeTree()
		ORDER BY (client_id, timestamp)
		TTL toDateTime(timestamp) + INTERVAL %d DAY
	`, db, tableName, ttlDays)
}

// Setup creates the database named in the DSN (default "logtopus") and its
// logs table. It connects to the default database to do so.
func Setup(ctx context.Context, cfg Config) error {
	log := diag.Or(cfg.Logger).Named("clickhouse-setup")
	if cfg.TTLDays <= 0 {
		cfg.TTLDays = defaultTTLDay
	}

	opts, err := clickhouse.ParseDSN(cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to parse DSN: %w", err)
	}

	targetDB := opts.Auth.Database
	if targetDB == "" {
		targetDB = defaultDB
	}
	if !identifier.MatchString(targetDB) {
		return fmt.Errorf("invalid database name %q", targetDB)
	}

	setupOpts := *opts
	setupOpts.Auth.Database = "default"

	conn, err := clickhouse.Open(&setupOpts)
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	defer func() {
		_ = conn.Close()
	}()

	if err := conn.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping ClickHouse: %w", err)
	}
	log.Info("connected for setup", zap.Strings("addr", setupOpts.Addr))

	log.Info("creating database", zap.String("database", targetDB))
	if err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", targetDB)); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	log.Info("creating table", zap.String("table", targetDB+"."+tableName))
	if err := conn.Exec(ctx, Schema(targetDB, cfg.TTLDays)); err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}
