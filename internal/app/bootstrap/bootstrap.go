// Package bootstrap 启动期装配：注册 LLM 供应商与检索器工厂，
// 并按配置构建带缓存包装的检索器列表。
package bootstrap

import (
	"fmt"

	"deepsearch/internal/adapter/embedding"
	openaiprovider "deepsearch/internal/adapter/provider/llm/openai"
	"deepsearch/internal/adapter/retriever/opensearch"
	"deepsearch/internal/adapter/retriever/qdrant"
	"deepsearch/internal/adapter/retriever/web"
	"deepsearch/internal/cache"
	"deepsearch/internal/domain/search"
	"deepsearch/internal/platform/config"
	applog "deepsearch/internal/platform/log"
	"deepsearch/internal/provider"
)

// RegisterLLMProviders 注册所有 LLM 供应商。
func RegisterLLMProviders(cfg *config.AppConfig) {
	provider.RegisterProvider(openaiprovider.New(openaiprovider.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
	}))
	applog.Info("✅ LLM providers registered", "providers", provider.ListProviders())
}

// RegisterRetrievers 把各检索后端的工厂注册进检索器注册表。
// 工厂捕获配置，延迟到 BuildRetrievers 才真正建连。
func RegisterRetrievers(cfg *config.AppConfig) {
	search.RegisterRetriever(opensearch.Name, func() (search.Retriever, error) {
		if cfg.OpenSearch.URL == "" {
			return nil, fmt.Errorf("opensearch retriever enabled but OPENSEARCH_URL is empty")
		}
		return opensearch.New(cfg.OpenSearch), nil
	})

	search.RegisterRetriever(qdrant.Name, func() (search.Retriever, error) {
		if cfg.Qdrant.URL == "" {
			return nil, fmt.Errorf("qdrant retriever enabled but QDRANT_URL is empty")
		}
		embedder := embedding.NewOpenAIEmbedder(embedding.OpenAIEmbedderConfig{
			BaseURL: cfg.OpenAI.BaseURL,
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.Qdrant.EmbeddingModel,
			Dims:    cfg.Qdrant.EmbeddingDims,
		})
		return qdrant.New(cfg.Qdrant, embedder), nil
	})

	search.RegisterRetriever(web.Name, func() (search.Retriever, error) {
		return web.NewDuckDuckGo(cfg.Web), nil
	})
}

// BuildRetrievers 按 Search.Retrievers 顺序构建检索器，
// 每个都套上记忆化缓存包装。
func BuildRetrievers(cfg *config.AppConfig, store cache.Store) ([]search.Retriever, error) {
	retrievers := make([]search.Retriever, 0, len(cfg.Search.Retrievers))
	for _, name := range cfg.Search.Retrievers {
		r, err := search.BuildRetriever(name)
		if err != nil {
			return nil, fmt.Errorf("build retriever %s: %w", name, err)
		}
		retrievers = append(retrievers, search.NewCachedRetriever(r, store, cfg.Cache.Disable))
		applog.Info("✅ Retriever ready", "name", name, "cache_disabled", cfg.Cache.Disable)
	}
	return retrievers, nil
}
