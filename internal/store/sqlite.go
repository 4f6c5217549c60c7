package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS observations (
	query_key TEXT PRIMARY KEY,
	payload   BLOB NOT NULL,
	stored_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_observations_stored_at ON observations (stored_at);
CREATE TABLE IF NOT EXISTS prewarm_markers (
	signature    TEXT PRIMARY KEY,
	completed_at INTEGER NOT NULL
);
`

// Open 打开（必要时创建）SQLite 存储文件并初始化 schema。
// 连接数限制为 1，避免写写竞争触发 SQLITE_BUSY。
func Open(path string) (Store, error) {
	if path == "" {
		return nil, errors.New("database path required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &sqliteStore{db: db}, nil
}

type sqliteStore struct {
	db *sql.DB
}

func (s *sqliteStore) Get(ctx context.Context, key string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT payload, stored_at FROM observations WHERE query_key = ?`, key)

	var payload []byte
	var storedAt int64
	if err := row.Scan(&payload, &storedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &Record{
		Key:      key,
		Payload:  payload,
		StoredAt: time.UnixMilli(storedAt).UTC(),
	}, nil
}

func (s *sqliteStore) Put(ctx context.Context, key string, payload []byte, storedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO observations (query_key, payload, stored_at) VALUES (?, ?, ?)
		 ON CONFLICT(query_key) DO UPDATE SET payload = excluded.payload, stored_at = excluded.stored_at`,
		key, payload, storedAt.UnixMilli())
	return err
}

func (s *sqliteStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM observations WHERE query_key = ?`, key)
	return err
}

func (s *sqliteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM observations`); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM prewarm_markers`)
	return err
}

// SweepExpired 依赖 stored_at 索引做范围删除，不触发全表扫描。
func (s *sqliteStore) SweepExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM observations WHERE stored_at < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (s *sqliteStore) MarkPrewarmed(ctx context.Context, signature string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prewarm_markers (signature, completed_at) VALUES (?, ?)
		 ON CONFLICT(signature) DO UPDATE SET completed_at = excluded.completed_at`,
		signature, at.UnixMilli())
	return err
}

func (s *sqliteStore) Prewarmed(ctx context.Context, signature string) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM prewarm_markers WHERE signature = ?`, signature)
	var one int
	if err := row.Scan(&one); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}
