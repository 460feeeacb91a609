// Package qdrant 稠密向量检索后端：查询先过 Embedder，
// 再走 Qdrant REST 的 points/search。
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deepsearch/internal/adapter/embedding"
	"deepsearch/internal/cache"
	"deepsearch/internal/domain/search"
	"deepsearch/internal/platform/httpretry"
)

// Name 检索器注册名
const Name = "qdrant"

// Config Qdrant 检索配置。Embedding 字段参与指纹：
// 换 embedding 模型等于换后端，不能共享缓存键。
type Config struct {
	URL            string `json:"url"`
	APIKey         string `json:"api_key"`
	Collection     string `json:"collection"`
	EmbeddingModel string `json:"embedding_model"`
	EmbeddingDims  int    `json:"embedding_dims"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	RetryAttempts  int    `json:"retry_attempts"`
	RetryDelayMs   int    `json:"retry_delay_ms"`
}

// Retriever Qdrant 稠密检索器。
type Retriever struct {
	cfg         Config
	fingerprint string
	embedder    embedding.Embedder
	client      *http.Client
}

// New 创建 Qdrant 检索器。
func New(cfg Config, embedder embedding.Embedder) *Retriever {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 15
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelayMs <= 0 {
		cfg.RetryDelayMs = 500
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	return &Retriever{
		cfg:         cfg,
		fingerprint: cache.Fingerprint(cfg),
		embedder:    embedder,
		client:      &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
	}
}

func (r *Retriever) Name() string        { return Name }
func (r *Retriever) Fields() []string    { return []string{"texts", "indices"} }
func (r *Retriever) Fingerprint() string { return r.fingerprint }

// Search 先批量 embed 全部查询，再逐查询检索。
func (r *Retriever) Search(ctx context.Context, queries []string, opts search.SearchOptions) ([]search.Result, error) {
	vectors, err := r.embedder.Embed(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("embed queries: %w", err)
	}
	if len(vectors) != len(queries) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d queries", len(vectors), len(queries))
	}

	results := make([]search.Result, len(queries))
	for i, vec := range vectors {
		res, err := r.searchOne(ctx, vec, opts.TopK)
		if err != nil {
			return nil, fmt.Errorf("qdrant query %q: %w", queries[i], err)
		}
		results[i] = res
	}
	return results, nil
}

type searchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

func (r *Retriever) searchOne(ctx context.Context, vector []float32, topK int) (search.Result, error) {
	if topK <= 0 {
		topK = 10
	}
	body, err := json.Marshal(map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	})
	if err != nil {
		return search.Result{}, fmt.Errorf("marshal query: %w", err)
	}

	endpoint := fmt.Sprintf("%s/collections/%s/points/search", r.cfg.URL, r.cfg.Collection)
	resp, err := httpretry.Do(ctx, r.client, func() (*http.Request, error) {
		req, err := http.NewRequest("POST", endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if r.cfg.APIKey != "" {
			req.Header.Set("api-key", r.cfg.APIKey)
		}
		return req, nil
	}, r.cfg.RetryAttempts, time.Duration(r.cfg.RetryDelayMs)*time.Millisecond)
	if err != nil {
		return search.Result{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return search.Result{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return search.Result{}, fmt.Errorf("search failed (%d): %s", resp.StatusCode, string(respBody))
	}

	var parsed searchResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return search.Result{}, fmt.Errorf("parse response: %w", err)
	}

	result := search.Result{}
	for _, point := range parsed.Result {
		text, _ := point.Payload["text"].(string)
		source := pointSource(point.ID, point.Payload)
		result.Texts = append(result.Texts, text)
		result.Indices = append(result.Indices, source)
		result.Scores = append(result.Scores, point.Score)
	}
	return result, nil
}

// pointSource 优先 payload 里的 chunk_id，退化到 point id。
func pointSource(id any, payload map[string]any) string {
	if chunkID, ok := payload["chunk_id"].(string); ok && chunkID != "" {
		return chunkID
	}
	return fmt.Sprintf("%v", id)
}
