// Package redisdb 基于 Redis 的共享缓存后端，以 URI 寻址，
// 可被多进程/多会话共用同一份缓存。
package redisdb

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"deepsearch/internal/cache"
	applog "deepsearch/internal/platform/log"
)

const (
	entryPrefix = "search:cache:"
	recencyKey  = "search:cache:recency"
)

// CacheStore Redis KV 存储。访问序记录在一个 ZSET 中
// （score = 最近使用时间戳，FIFO 下为写入时间戳），
// 写入超界时按 score 最小弹出并删除对应条目。
type CacheStore struct {
	redis      *redis.Client
	maxEntries int
	order      cache.EvictOrder
}

// NewCacheStore 创建 Redis 缓存存储。
func NewCacheStore(client *redis.Client, maxEntries int, order cache.EvictOrder) *CacheStore {
	return &CacheStore{redis: client, maxEntries: maxEntries, order: order}
}

func (s *CacheStore) Get(ctx context.Context, key cache.Key) ([]byte, bool, error) {
	data, err := s.redis.Get(ctx, entryPrefix+string(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get: %w", err)
	}

	if s.order == cache.EvictLRU {
		if err := s.redis.ZAdd(ctx, recencyKey, redis.Z{
			Score:  float64(time.Now().UnixNano()),
			Member: string(key),
		}).Err(); err != nil {
			return nil, false, fmt.Errorf("cache touch: %w", err)
		}
	}
	return data, true, nil
}

func (s *CacheStore) Put(ctx context.Context, key cache.Key, value []byte) error {
	member := redis.Z{
		Score:  float64(time.Now().UnixNano()),
		Member: string(key),
	}
	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, entryPrefix+string(key), value, 0)
	if s.order == cache.EvictFIFO {
		// FIFO 下保留首次写入的时间戳
		pipe.ZAddNX(ctx, recencyKey, member)
	} else {
		pipe.ZAdd(ctx, recencyKey, member)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}

	if s.maxEntries > 0 {
		if err := s.evictExcess(ctx); err != nil {
			return err
		}
	}
	return nil
}

// evictExcess 弹出访问序最旧的成员并删除其条目。
func (s *CacheStore) evictExcess(ctx context.Context) error {
	count, err := s.redis.ZCard(ctx, recencyKey).Result()
	if err != nil {
		return fmt.Errorf("cache card: %w", err)
	}
	excess := count - int64(s.maxEntries)
	if excess <= 0 {
		return nil
	}

	oldest, err := s.redis.ZPopMin(ctx, recencyKey, excess).Result()
	if err != nil {
		return fmt.Errorf("cache evict: %w", err)
	}
	keys := make([]string, 0, len(oldest))
	for _, z := range oldest {
		if member, ok := z.Member.(string); ok {
			keys = append(keys, entryPrefix+member)
		}
	}
	if len(keys) > 0 {
		if err := s.redis.Del(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("cache evict del: %w", err)
		}
		applog.Debug("[Cache] Evicted", "entries", len(keys))
	}
	return nil
}

func (s *CacheStore) Delete(ctx context.Context, key cache.Key) error {
	pipe := s.redis.TxPipeline()
	pipe.Del(ctx, entryPrefix+string(key))
	pipe.ZRem(ctx, recencyKey, string(key))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache delete: %w", err)
	}
	return nil
}

func (s *CacheStore) Len(ctx context.Context) (int, error) {
	count, err := s.redis.ZCard(ctx, recencyKey).Result()
	if err != nil {
		return 0, fmt.Errorf("cache len: %w", err)
	}
	return int(count), nil
}

// Flush 清空全部缓存条目（SCAN 模式匹配删除）。
func (s *CacheStore) Flush(ctx context.Context) error {
	iter := s.redis.Scan(ctx, 0, entryPrefix+"*", 500).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache flush scan: %w", err)
	}
	keys = append(keys, recencyKey)
	if err := s.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache flush: %w", err)
	}
	applog.Info("[Cache] All entries invalidated", "keys_deleted", len(keys)-1)
	return nil
}

func (s *CacheStore) Close() error {
	return s.redis.Close()
}
