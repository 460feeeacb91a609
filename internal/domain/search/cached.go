package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"deepsearch/internal/cache"
	applog "deepsearch/internal/platform/log"
)

// CachedRetriever 记忆化包装：把一批查询拆成命中与未命中，
// 只对未命中调用底层检索器，并把新结果写回存储。
// 对调用方完全透明：输出顺序与输入一致，每个查询恰好一个结果。
type CachedRetriever struct {
	inner Retriever
	store cache.Store
	// disabled 进程级旁路（配置或 DEEPSEARCH_DISABLE_CACHE）
	disabled bool
}

// NewCachedRetriever 包装检索器。store 为 nil 或 disabled 时退化为直通。
func NewCachedRetriever(inner Retriever, store cache.Store, disabled bool) *CachedRetriever {
	return &CachedRetriever{inner: inner, store: store, disabled: disabled}
}

func (c *CachedRetriever) Name() string        { return c.inner.Name() }
func (c *CachedRetriever) Fields() []string    { return c.inner.Fields() }
func (c *CachedRetriever) Fingerprint() string { return c.inner.Fingerprint() }

// Inner 返回被包装的检索器。
func (c *CachedRetriever) Inner() Retriever { return c.inner }

// Search 记忆化批量检索。
// 缓存层故障按 fail-open 处理：读失败视作未命中，写失败仅告警，
// 检索本身不会因缓存不可用而失败。
func (c *CachedRetriever) Search(ctx context.Context, queries []string, opts SearchOptions) ([]Result, error) {
	if c.disabled || opts.DisableCache || c.store == nil {
		return c.inner.Search(ctx, queries, opts)
	}

	keys := make([]cache.Key, len(queries))
	for i, q := range queries {
		keys[i] = c.cacheKey(q, opts)
	}

	results := make([]*Result, len(queries))
	missQueries := make([]string, 0, len(queries))
	missIndices := make([]int, 0, len(queries))
	storeHealthy := true

	for i, key := range keys {
		raw, ok, err := c.store.Get(ctx, key)
		if err != nil {
			if storeHealthy {
				applog.Warn("[Cache] Store unavailable, falling back to backend", "retriever", c.inner.Name(), "error", err)
			}
			storeHealthy = false
		}
		if err == nil && ok {
			var r Result
			if uerr := json.Unmarshal(raw, &r); uerr == nil {
				results[i] = &r
				continue
			}
			applog.Warn("[Cache] Corrupt entry dropped", "retriever", c.inner.Name(), "error", "unmarshal failed")
			if derr := c.store.Delete(ctx, key); derr != nil {
				storeHealthy = false
			}
		}
		missQueries = append(missQueries, queries[i])
		missIndices = append(missIndices, i)
	}

	// 全命中时不触达底层检索器
	if len(missQueries) > 0 {
		fetched, err := c.inner.Search(ctx, missQueries, opts)
		if err != nil {
			return nil, err
		}
		if len(fetched) != len(missQueries) {
			return nil, fmt.Errorf("retriever %s returned %d results for %d queries", c.inner.Name(), len(fetched), len(missQueries))
		}
		for n, idx := range missIndices {
			r := fetched[n]
			results[idx] = &r
			if !storeHealthy {
				continue
			}
			raw, merr := json.Marshal(r)
			if merr != nil {
				continue
			}
			if perr := c.store.Put(ctx, keys[idx], raw); perr != nil {
				applog.Warn("[Cache] Write-back failed", "retriever", c.inner.Name(), "error", perr)
				storeHealthy = false
			}
		}
		applog.Debug("[Cache] Batch served", "retriever", c.inner.Name(), "hits", len(queries)-len(missQueries), "misses", len(missQueries))
	}

	out := make([]Result, len(queries))
	for i, r := range results {
		out[i] = *r
	}
	return out, nil
}

// cacheKey 键 = 指纹(后端配置) + 查询 + 其余检索参数（top_k 与透传参数）。
func (c *CachedRetriever) cacheKey(query string, opts SearchOptions) cache.Key {
	params := make(map[string]string, len(opts.Params)+1)
	for k, v := range opts.Params {
		params[k] = v
	}
	params["top_k"] = strconv.Itoa(opts.TopK)
	return cache.NewKey(c.inner.Fingerprint(), query, params)
}
