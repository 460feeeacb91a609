// Package sqlitedb 基于 modernc.org/sqlite（纯 Go 驱动）的本地持久化缓存，
// 以文件路径寻址，跨进程重启存活。
package sqlitedb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"deepsearch/internal/cache"
)

// CacheStore 有界的 sqlite KV 存储。
// 驱逐序由 last_access（LRU）或 created_at（FIFO）决定；
// 读命中会刷新 last_access，写入超界时先删最旧条目。
type CacheStore struct {
	db         *sql.DB
	maxEntries int
	order      cache.EvictOrder
}

// NewCacheStore 打开（或创建）path 处的缓存库。maxEntries <= 0 不设上限。
func NewCacheStore(path string, maxEntries int, order cache.EvictOrder) (*CacheStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key         TEXT PRIMARY KEY,
	value       BLOB NOT NULL,
	created_at  INTEGER NOT NULL,
	last_access INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_cache_last_access ON cache_entries(last_access);
CREATE INDEX IF NOT EXISTS idx_cache_created_at ON cache_entries(created_at);`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure cache table: %w", err)
	}

	return &CacheStore{db: db, maxEntries: maxEntries, order: order}, nil
}

func (s *CacheStore) Get(ctx context.Context, key cache.Key) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM cache_entries WHERE key = ?`, string(key)).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	if s.order == cache.EvictLRU {
		// 读计入使用，刷新访问序
		if _, err := s.db.ExecContext(ctx,
			`UPDATE cache_entries SET last_access = ? WHERE key = ?`, now(), string(key)); err != nil {
			return nil, false, fmt.Errorf("cache touch: %w", err)
		}
	}
	return value, true, nil
}

func (s *CacheStore) Put(ctx context.Context, key cache.Key, value []byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	defer tx.Rollback()

	ts := now()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO cache_entries (key, value, created_at, last_access) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, last_access = excluded.last_access`,
		string(key), value, ts, ts); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	if s.maxEntries > 0 {
		if err := s.evictExcess(ctx, tx); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// evictExcess 删除超出容量的最旧条目。
func (s *CacheStore) evictExcess(ctx context.Context, tx *sql.Tx) error {
	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return fmt.Errorf("cache count: %w", err)
	}
	excess := count - s.maxEntries
	if excess <= 0 {
		return nil
	}

	orderCol := "last_access"
	if s.order == cache.EvictFIFO {
		orderCol = "created_at"
	}
	query := fmt.Sprintf(`DELETE FROM cache_entries WHERE key IN
(SELECT key FROM cache_entries ORDER BY %s ASC LIMIT ?)`, orderCol)
	if _, err := tx.ExecContext(ctx, query, excess); err != nil {
		return fmt.Errorf("cache evict: %w", err)
	}
	return nil
}

func (s *CacheStore) Delete(ctx context.Context, key cache.Key) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE key = ?`, string(key)); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (s *CacheStore) Len(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM cache_entries`).Scan(&count); err != nil {
		return 0, fmt.Errorf("cache len: %w", err)
	}
	return count, nil
}

func (s *CacheStore) Flush(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cache_entries`); err != nil {
		return fmt.Errorf("cache flush: %w", err)
	}
	return nil
}

func (s *CacheStore) Close() error {
	return s.db.Close()
}

// now 单调递增时间戳（纳秒）。同纳秒冲突对驱逐序无影响。
func now() int64 {
	return time.Now().UnixNano()
}
