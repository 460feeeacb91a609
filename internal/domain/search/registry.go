package search

import (
	"fmt"
	"sort"
	"sync"
)

// RetrieverFactory 检索器构造函数，由各 adapter 在启动期注册。
type RetrieverFactory func() (Retriever, error)

var retrieverRegistry = struct {
	mu        sync.RWMutex
	factories map[string]RetrieverFactory
}{factories: make(map[string]RetrieverFactory)}

// RegisterRetriever 注册检索器构造函数。重复注册以后者为准。
func RegisterRetriever(name string, factory RetrieverFactory) {
	retrieverRegistry.mu.Lock()
	defer retrieverRegistry.mu.Unlock()
	retrieverRegistry.factories[name] = factory
}

// BuildRetriever 按名字构造检索器。
func BuildRetriever(name string) (Retriever, error) {
	retrieverRegistry.mu.RLock()
	factory, ok := retrieverRegistry.factories[name]
	retrieverRegistry.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("retriever not registered: %s", name)
	}
	return factory()
}

// ListRetrievers 列出已注册的检索器名。
func ListRetrievers() []string {
	retrieverRegistry.mu.RLock()
	defer retrieverRegistry.mu.RUnlock()
	names := make([]string, 0, len(retrieverRegistry.factories))
	for name := range retrieverRegistry.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
