// Package sqlite implements storage.Indexed on SQLite: one table keyed by an
// auto-incrementing id and indexed by level and timestamp.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/predatorx7/logtopus/pkg/model"
	"github.com/predatorx7/logtopus/pkg/storage"
)

// DefaultTable is the record collection name.
const DefaultTable = "app_logs"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type Store struct {
	db    *sql.DB
	table string
}

// Open opens (creating if needed) the database at dsn, e.g. a file path or
// "file::memory:?cache=shared".
func Open(ctx context.Context, dsn, table string) (*Store, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// one writer; sqlite serialises anyway and this avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	s := &Store{db: db, table: table}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Opener returns a storage.Opener for the indexed transport.
func Opener(dsn, table string) storage.Opener {
	return func(ctx context.Context) (storage.Indexed, error) {
		return Open(ctx, dsn, table)
	}
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			level TEXT NOT NULL,
			message TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			metadata TEXT,
			context TEXT
		)`, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_level ON %s (level)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s (timestamp)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate %s: %w", s.table, err)
		}
	}
	return nil
}

func (s *Store) Add(ctx context.Context, entry model.LogEntry) (int64, error) {
	metadata, err := encodeFields(entry.Metadata)
	if err != nil {
		return 0, fmt.Errorf("failed to encode metadata: %w", err)
	}
	logCtx, err := encodeFields(entry.Context)
	if err != nil {
		return 0, fmt.Errorf("failed to encode context: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (level, message, timestamp, metadata, context) VALUES (?, ?, ?, ?, ?)`, s.table),
		entry.Level.String(), entry.Message, entry.Timestamp, metadata, logCtx,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert entry: %w", err)
	}
	return res.LastInsertId()
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.table)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return n, nil
}

func (s *Store) Oldest(ctx context.Context, n int) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id FROM %s ORDER BY timestamp ASC, id ASC LIMIT ?`, s.table), n)
	if err != nil {
		return nil, fmt.Errorf("failed to select oldest entries: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) Delete(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE id IN (%s)`, s.table, placeholders), args...)
	if err != nil {
		return fmt.Errorf("failed to delete entries: %w", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, params storage.QueryParams) ([]model.LogEntry, error) {
	query := fmt.Sprintf(`SELECT id, level, message, timestamp, metadata, context FROM %s WHERE 1=1`, s.table)
	args := []any{}

	if params.Level != 0 {
		query += " AND level = ?"
		args = append(args, params.Level.String())
	}
	if params.From != "" {
		query += " AND timestamp >= ?"
		args = append(args, params.From)
	}
	if params.To != "" {
		query += " AND timestamp <= ?"
		args = append(args, params.To)
	}

	query += " ORDER BY timestamp DESC, id DESC"

	if params.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, params.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	var entries []model.LogEntry
	for rows.Next() {
		entry, err := scanRow(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, s.table)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", s.table, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func scanRow(rows *sql.Rows) (model.LogEntry, error) {
	var entry model.LogEntry
	var levelStr string
	var metadata, logCtx sql.NullString

	if err := rows.Scan(&entry.ID, &levelStr, &entry.Message, &entry.Timestamp, &metadata, &logCtx); err != nil {
		return entry, fmt.Errorf("failed to scan row: %w", err)
	}

	level, err := model.ParseLevel(levelStr)
	if err != nil {
		return entry, fmt.Errorf("row %d: %w", entry.ID, err)
	}
	entry.Level = level
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
			return entry, fmt.Errorf("row %d: failed to decode metadata: %w", entry.ID, err)
		}
	}
	if logCtx.Valid && logCtx.String != "" {
		if err := json.Unmarshal([]byte(logCtx.String), &entry.Context); err != nil {
			return entry, fmt.Errorf("row %d: failed to decode context: %w", entry.ID, err)
		}
	}
	return entry, nil
}

func encodeFields(f model.Fields) (sql.NullString, error) {
	if len(f) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(f)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
