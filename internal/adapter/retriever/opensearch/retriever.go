// Package opensearch 词法（BM25）检索后端。
package opensearch

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deepsearch/internal/cache"
	"deepsearch/internal/domain/search"
	"deepsearch/internal/platform/httpretry"
)

// Name 检索器注册名
const Name = "opensearch"

// Config OpenSearch 检索配置
type Config struct {
	URL            string `json:"url"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	Index          string `json:"index"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	RetryAttempts  int    `json:"retry_attempts"`
	RetryDelayMs   int    `json:"retry_delay_ms"`
}

// Retriever 对单个 OpenSearch 索引做 match 查询。
type Retriever struct {
	cfg         Config
	fingerprint string
	client      *http.Client
}

// New 创建 OpenSearch 检索器。
func New(cfg Config) *Retriever {
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = 30
	}
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelayMs <= 0 {
		cfg.RetryDelayMs = 500
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec // 开发环境自签证书
	}
	return &Retriever{
		cfg:         cfg,
		fingerprint: cache.Fingerprint(cfg),
		client: &http.Client{
			Timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
			Transport: transport,
		},
	}
}

func (r *Retriever) Name() string        { return Name }
func (r *Retriever) Fields() []string    { return []string{"texts", "indices"} }
func (r *Retriever) Fingerprint() string { return r.fingerprint }

// Search 逐查询执行 BM25 match，每个查询恰好产出一个结果组。
func (r *Retriever) Search(ctx context.Context, queries []string, opts search.SearchOptions) ([]search.Result, error) {
	results := make([]search.Result, len(queries))
	for i, q := range queries {
		res, err := r.searchOne(ctx, q, opts.TopK)
		if err != nil {
			return nil, fmt.Errorf("opensearch query %q: %w", q, err)
		}
		results[i] = res
	}
	return results, nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string  `json:"_id"`
			Score  float64 `json:"_score"`
			Source struct {
				Content string `json:"content"`
			} `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (r *Retriever) searchOne(ctx context.Context, query string, topK int) (search.Result, error) {
	if topK <= 0 {
		topK = 10
	}
	body, err := json.Marshal(map[string]any{
		"size": topK,
		"query": map[string]any{
			"match": map[string]any{"content": query},
		},
	})
	if err != nil {
		return search.Result{}, fmt.Errorf("marshal query: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/_search", r.cfg.URL, r.cfg.Index)
	resp, err := httpretry.Do(ctx, r.client, func() (*http.Request, error) {
		req, err := http.NewRequest("POST", endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if r.cfg.Username != "" {
			req.SetBasicAuth(r.cfg.Username, r.cfg.Password)
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
	for _, hit := range parsed.Hits.Hits {
		result.Texts = append(result.Texts, hit.Source.Content)
		result.Indices = append(result.Indices, hit.ID)
		result.Scores = append(result.Scores, hit.Score)
	}
	return result, nil
}
