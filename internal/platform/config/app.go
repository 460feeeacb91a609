package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"deepsearch/internal/adapter/retriever/opensearch"
	"deepsearch/internal/adapter/retriever/qdrant"
	"deepsearch/internal/adapter/retriever/web"
	"deepsearch/internal/cache"
	"deepsearch/internal/domain/search"
)

// AppConfig 全局配置。启动时统一加载，再按模块提取使用。
type AppConfig struct {
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`

	Server   ServerConfig   `json:"server"`
	Database DatabaseConfig `json:"database"` // 可选：轨迹持久化
	Redis    RedisConfig    `json:"redis"`    // cache backend 为 redis 时必填
	Auth     AuthConfig     `json:"auth"`
	OpenAI   OpenAIConfig   `json:"openai"`

	Cache  cache.Config  `json:"cache"`
	Search search.Config `json:"search"`

	OpenSearch opensearch.Config `json:"opensearch"`
	Qdrant     qdrant.Config     `json:"qdrant"`
	Web        web.Config        `json:"web"`
}

type ServerConfig struct {
	Host                 string `json:"host"`
	Port                 int    `json:"port"`
	ReadTimeoutSeconds   int    `json:"read_timeout_seconds"`
	WriteTimeoutSeconds  int    `json:"write_timeout_seconds"`
	SearchTimeoutSeconds int    `json:"search_timeout_seconds"`
}

type DatabaseConfig struct {
	URL          string `json:"url"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

type RedisConfig struct {
	URL string `json:"url"`
}

type AuthConfig struct {
	JWTSecret string `json:"jwt_secret"`
	JWTIssuer string `json:"jwt_issuer"`
}

type OpenAIConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

// Default 返回默认配置。
func Default() *AppConfig {
	searchCfg := search.DefaultConfig()
	return &AppConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Server: ServerConfig{
			Host:                 "0.0.0.0",
			Port:                 8080,
			ReadTimeoutSeconds:   30,
			WriteTimeoutSeconds:  600,
			SearchTimeoutSeconds: 300,
		},
		Database: DatabaseConfig{
			MaxOpenConns: 25,
			MaxIdleConns: 5,
		},
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
		},
		Cache: cache.Config{
			Backend:    "sqlite",
			MaxEntries: 1000000,
			EvictOrder: string(cache.EvictLRU),
		},
		Search: *searchCfg,
	}
}

// Load 加载全局配置：默认值 -> 配置文件 -> 环境变量。
// 配置文件路径通过 APP_CONFIG_FILE 指定（JSON）。
func Load() (*AppConfig, error) {
	// .env 非必需，加载失败直接忽略
	_ = godotenv.Load()

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv("APP_CONFIG_FILE")); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read APP_CONFIG_FILE %q failed: %w", path, err)
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse APP_CONFIG_FILE %q failed: %w", path, err)
	}
	return nil
}

func (c *AppConfig) applyEnv() {
	applyString("LOG_LEVEL", &c.LogLevel)
	applyString("LOG_FORMAT", &c.LogFormat)

	applyString("HOST", &c.Server.Host)
	applyInt("PORT", &c.Server.Port)
	applyInt("SERVER_READ_TIMEOUT", &c.Server.ReadTimeoutSeconds)
	applyInt("SERVER_WRITE_TIMEOUT", &c.Server.WriteTimeoutSeconds)
	applyInt("SEARCH_TIMEOUT", &c.Server.SearchTimeoutSeconds)

	applyString("DATABASE_URL", &c.Database.URL)
	applyInt("DATABASE_MAX_OPEN_CONNS", &c.Database.MaxOpenConns)
	applyInt("DATABASE_MAX_IDLE_CONNS", &c.Database.MaxIdleConns)

	applyString("REDIS_URL", &c.Redis.URL)

	applyString("JWT_SECRET", &c.Auth.JWTSecret)
	applyString("JWT_ISSUER", &c.Auth.JWTIssuer)

	applyString("OPENAI_API_KEY", &c.OpenAI.APIKey)
	applyString("OPENAI_BASE_URL", &c.OpenAI.BaseURL)

	// 缓存层
	applyString("CACHE_BACKEND", &c.Cache.Backend)
	applyInt("CACHE_MAX_ENTRIES", &c.Cache.MaxEntries)
	applyString("CACHE_EVICT_ORDER", &c.Cache.EvictOrder)
	applyString("CACHE_PATH", &c.Cache.Path)
	applyBool("DEEPSEARCH_DISABLE_CACHE", &c.Cache.Disable)

	// 搜索编排
	applyBool("SEARCH_EXTRACT_INFORMATION", &c.Search.ExtractInfo)
	applyBool("SEARCH_REWRITE_QUERY", &c.Search.RewriteQuery)
	applyBool("SEARCH_VERIFY_CONTEXT", &c.Search.VerifyContext)
	applyBool("SEARCH_SUMMARIZE_CONTEXT", &c.Search.SummarizeContext)
	applyInt("SEARCH_TOP_K", &c.Search.TopK)
	applyInt("SEARCH_LOG_INTERVAL", &c.Search.LogInterval)
	applyString("SEARCHER_LLM_PROVIDER", &c.Search.SearcherProvider)
	applyString("SEARCHER_LLM_MODEL", &c.Search.SearcherModel)
	applyInt("SEARCHER_MAX_TOKENS", &c.Search.SearcherMaxTokens)
	applyString("GENERATOR_LLM_PROVIDER", &c.Search.GeneratorProvider)
	applyString("GENERATOR_LLM_MODEL", &c.Search.GeneratorModel)
	if v := os.Getenv("SEARCH_RETRIEVERS"); v != "" {
		c.Search.Retrievers = splitList(v)
	}

	// 检索后端
	applyString("OPENSEARCH_URL", &c.OpenSearch.URL)
	applyString("OPENSEARCH_USERNAME", &c.OpenSearch.Username)
	applyString("OPENSEARCH_PASSWORD", &c.OpenSearch.Password)
	applyString("OPENSEARCH_INDEX", &c.OpenSearch.Index)

	applyString("QDRANT_URL", &c.Qdrant.URL)
	applyString("QDRANT_API_KEY", &c.Qdrant.APIKey)
	applyString("QDRANT_COLLECTION", &c.Qdrant.Collection)
	applyString("QDRANT_EMBEDDING_MODEL", &c.Qdrant.EmbeddingModel)
	applyInt("QDRANT_EMBEDDING_DIMS", &c.Qdrant.EmbeddingDims)

	applyString("DDG_ENDPOINT", &c.Web.Endpoint)
}

func (c *AppConfig) normalize() {
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com/v1"
	}
	if c.Cache.Path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		c.Cache.Path = filepath.Join(home, ".cache", "deepsearch", "cache.db")
	}
	if len(c.Search.Retrievers) == 0 {
		// 未显式指定时按配置推导：有 URL 即启用
		if c.OpenSearch.URL != "" {
			c.Search.Retrievers = append(c.Search.Retrievers, opensearch.Name)
		}
		if c.Qdrant.URL != "" {
			c.Search.Retrievers = append(c.Search.Retrievers, qdrant.Name)
		}
		if c.Web.Endpoint != "" {
			c.Search.Retrievers = append(c.Search.Retrievers, web.Name)
		}
	}
	c.Search.Normalize()
}

func (c *AppConfig) validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if len(c.Search.Retrievers) == 0 {
		return fmt.Errorf("no retriever configured (set SEARCH_RETRIEVERS or a backend URL)")
	}
	switch c.Cache.Backend {
	case "memory", "sqlite":
	case "redis":
		if strings.TrimSpace(c.Redis.URL) == "" {
			return fmt.Errorf("REDIS_URL is required for cache backend redis")
		}
	default:
		return fmt.Errorf("unknown cache backend: %s", c.Cache.Backend)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func applyString(key string, target *string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func applyInt(key string, target *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*target = n
		}
	}
}

func applyBool(key string, target *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*target = b
		}
	}
}
