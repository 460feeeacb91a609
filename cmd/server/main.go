package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	goredis "github.com/redis/go-redis/v9"

	"deepsearch/internal/api"
	"deepsearch/internal/app/bootstrap"
	"deepsearch/internal/cache"
	"deepsearch/internal/db/postgres"
	redisdb "deepsearch/internal/db/redis"
	sqlitedb "deepsearch/internal/db/sqlite"
	"deepsearch/internal/domain/search"
	"deepsearch/internal/platform/config"
	applog "deepsearch/internal/platform/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Config load failed: %v\n", err)
		os.Exit(1)
	}

	applog.Init(applog.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	store := initCacheStore(cfg)
	if store != nil {
		defer store.Close()
	}

	bootstrap.RegisterLLMProviders(cfg)
	bootstrap.RegisterRetrievers(cfg)

	retrievers, err := bootstrap.BuildRetrievers(cfg, store)
	if err != nil {
		applog.Fatalf("❌ Failed to build retrievers: %v", err)
	}

	searcher, err := search.NewSearcher(&cfg.Search, retrievers)
	if err != nil {
		applog.Fatalf("❌ Failed to create searcher: %v", err)
	}

	collab := search.NewLLMCollaborators(&cfg.Search)
	searcher.SetRewriter(collab.Rewriter)
	searcher.SetVerifier(collab.Verifier)
	searcher.SetSummarizer(collab.Summarizer)
	searcher.SetExtractor(collab.Extractor)
	searcher.SetGenerator(collab.Generator)

	serverConfig := api.DefaultServerConfig()
	serverConfig.Host = cfg.Server.Host
	serverConfig.Port = cfg.Server.Port
	serverConfig.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	serverConfig.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	serverConfig.SearchTimeout = time.Duration(cfg.Server.SearchTimeoutSeconds) * time.Second
	serverConfig.JWTSecret = cfg.Auth.JWTSecret
	serverConfig.JWTIssuer = cfg.Auth.JWTIssuer
	server := api.NewServer(serverConfig, searcher)
	server.SetCacheStore(store)

	if cfg.Database.URL != "" {
		traceStore := initTraceStore(cfg)
		if traceStore != nil {
			searcher.SetTraceStore(traceStore)
			server.SetTraceReader(traceStore)
		}
	} else {
		applog.Info("ℹ️  No DATABASE_URL set, trace persistence disabled")
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		applog.Info("🔄 Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Stop(ctx); err != nil {
			applog.Errorf("❌ Server shutdown error: %v", err)
		}
	}()

	if err := server.Start(); err != nil && err.Error() != "http: Server closed" {
		applog.Fatalf("❌ Server error: %v", err)
	}

	applog.Info("👋 Server stopped")
}

// initCacheStore 按 CACHE_BACKEND 构建检索缓存存储。
// DEEPSEARCH_DISABLE_CACHE=1 时不建存储，检索全部直通后端。
func initCacheStore(cfg *config.AppConfig) cache.Store {
	if cfg.Cache.Disable {
		applog.Info("ℹ️  Retrieval cache disabled (DEEPSEARCH_DISABLE_CACHE)")
		return nil
	}

	order := cache.ParseEvictOrder(cfg.Cache.EvictOrder)
	switch cfg.Cache.Backend {
	case "memory":
		applog.Infof("✅ Retrieval cache: memory (max: %d, order: %s)", cfg.Cache.MaxEntries, order)
		return cache.NewMemoryStore(cfg.Cache.MaxEntries, order)

	case "sqlite":
		store, err := sqlitedb.NewCacheStore(cfg.Cache.Path, cfg.Cache.MaxEntries, order)
		if err != nil {
			applog.Fatalf("❌ Failed to open sqlite cache at %s: %v", cfg.Cache.Path, err)
		}
		applog.Infof("✅ Retrieval cache: sqlite at %s (max: %d, order: %s)", cfg.Cache.Path, cfg.Cache.MaxEntries, order)
		return store

	case "redis":
		opt, err := goredis.ParseURL(cfg.Redis.URL)
		if err != nil {
			applog.Fatalf("❌ Invalid REDIS_URL: %v", err)
		}
		client := goredis.NewClient(opt)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			applog.Fatalf("❌ Redis connection failed: %v", err)
		}
		applog.Infof("✅ Retrieval cache: redis (max: %d, order: %s)", cfg.Cache.MaxEntries, order)
		return redisdb.NewCacheStore(client, cfg.Cache.MaxEntries, order)

	default:
		applog.Fatalf("❌ Unknown cache backend: %s", cfg.Cache.Backend)
		return nil
	}
}

// initTraceStore 连接 PostgreSQL 并准备轨迹表。失败仅告警，不阻塞启动。
func initTraceStore(cfg *config.AppConfig) *postgres.TraceStore {
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		applog.Warnf("⚠️  Failed to open database: %v (trace persistence disabled)", err)
		return nil
	}
	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		applog.Warnf("⚠️  Failed to ping database: %v (trace persistence disabled)", err)
		return nil
	}
	applog.Info("✅ Connected to PostgreSQL")

	traceStore := postgres.NewTraceStore(db)
	if err := traceStore.EnsureTable(ctx); err != nil {
		applog.Warnf("⚠️  Failed to ensure search_traces table: %v", err)
	} else {
		applog.Info("✅ Search traces table ready")
	}
	return traceStore
}
