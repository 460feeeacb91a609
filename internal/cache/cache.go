// Package cache 提供检索结果的持久化 KV 缓存契约与键指纹计算。
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Key 指纹化后的缓存键。
type Key string

// ErrClosed 存储已关闭。
var ErrClosed = errors.New("cache: store closed")

// EvictOrder 驱逐策略名。
type EvictOrder string

const (
	EvictLRU  EvictOrder = "LRU"
	EvictFIFO EvictOrder = "FIFO"
)

// ParseEvictOrder 解析策略名，未知值回落 LRU。
func ParseEvictOrder(s string) EvictOrder {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(EvictFIFO):
		return EvictFIFO
	default:
		return EvictLRU
	}
}

// Store 并发安全的 KV 存储。容量满时 Put 先按策略驱逐再写入；
// LRU 策略下 Get 视为一次使用，会刷新条目的访问序。
type Store interface {
	Get(ctx context.Context, key Key) ([]byte, bool, error)
	Put(ctx context.Context, key Key, value []byte) error
	Delete(ctx context.Context, key Key) error
	// Len 返回当前驻留条目数。
	Len(ctx context.Context) (int, error)
	// Flush 清空全部条目（显式失效）。
	Flush(ctx context.Context) error
	Close() error
}

// Config 缓存层配置。
type Config struct {
	Backend    string `json:"backend"` // memory | sqlite | redis
	MaxEntries int    `json:"max_entries"`
	EvictOrder string `json:"evict_order"` // LRU | FIFO
	Path       string `json:"path"`        // sqlite 数据库文件
	// Disable 进程级旁路开关（DEEPSEARCH_DISABLE_CACHE 由配置加载注入）。
	Disable bool `json:"disable"`
}

// Fingerprint 计算任意配置对象的确定性指纹。
// 同一检索后端配置在进程生命周期内不可变，指纹用于把缓存结果
// 归属到正确的后端版本；不同配置即使查询相同也不会共享键。
func Fingerprint(cfg any) string {
	raw, err := json.Marshal(cfg)
	if err != nil {
		// 配置结构应始终可序列化，退化为类型描述
		raw = []byte(fmt.Sprintf("%T%+v", cfg, cfg))
	}
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%x", sum[:16])
}

// NewKey 由后端指纹、查询与其余检索参数派生缓存键。
// 参数集按键名排序后参与哈希，参数顺序不影响结果。
func NewKey(fingerprint, query string, params map[string]string) Key {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString(fingerprint)
	sb.WriteByte('|')
	sb.WriteString(query)
	for _, name := range names {
		sb.WriteByte('|')
		sb.WriteString(name)
		sb.WriteByte('=')
		sb.WriteString(params[name])
	}

	sum := sha256.Sum256([]byte(sb.String()))
	return Key(fmt.Sprintf("%x", sum[:16]))
}
