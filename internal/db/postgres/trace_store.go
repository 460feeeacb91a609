// Package postgres 检索轨迹的持久化（审计用途）。
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"deepsearch/internal/domain/search"
)

// TraceStore 把完整 SearchTrace 以 JSONB 落库。
type TraceStore struct {
	db *sql.DB
}

// NewTraceStore 创建轨迹存储。
func NewTraceStore(db *sql.DB) *TraceStore {
	return &TraceStore{db: db}
}

// EnsureTable 建表（幂等）。
func (s *TraceStore) EnsureTable(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS search_traces (
	id         TEXT PRIMARY KEY,
	question   TEXT NOT NULL,
	trace      JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_search_traces_created_at ON search_traces(created_at DESC);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure search_traces table: %w", err)
	}
	return nil
}

// Save 保存一条轨迹。轨迹会话结束后不再变化，冲突即重复保存，直接忽略。
func (s *TraceStore) Save(ctx context.Context, trace *search.SearchTrace) error {
	raw, err := json.Marshal(trace)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO search_traces (id, question, trace, created_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO NOTHING`,
		trace.ID, trace.Question, raw, trace.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert trace: %w", err)
	}
	return nil
}

// Get 按 id 读取轨迹，不存在返回 nil。
func (s *TraceStore) Get(ctx context.Context, id string) (*search.SearchTrace, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx, `SELECT trace FROM search_traces WHERE id = $1`, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get trace: %w", err)
	}

	var trace search.SearchTrace
	if err := json.Unmarshal(raw, &trace); err != nil {
		return nil, fmt.Errorf("unmarshal trace: %w", err)
	}
	return &trace, nil
}

// TraceSummary 轨迹列表项。
type TraceSummary struct {
	ID        string `json:"id"`
	Question  string `json:"question"`
	CreatedAt string `json:"created_at"`
}

// List 按时间倒序列出轨迹摘要。
func (s *TraceStore) List(ctx context.Context, limit int) ([]TraceSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, question, created_at FROM search_traces ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list traces: %w", err)
	}
	defer rows.Close()

	var out []TraceSummary
	for rows.Next() {
		var t TraceSummary
		if err := rows.Scan(&t.ID, &t.Question, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan trace row: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
