package cache

import (
	"container/list"
	"context"
	"sync"
)

// MemoryStore 进程内有界 KV 存储。默认后端，也用于测试。
type MemoryStore struct {
	mu         sync.Mutex
	maxEntries int
	order      EvictOrder
	ll         *list.List // 队首为最近使用
	items      map[Key]*list.Element
	closed     bool
}

type memoryEntry struct {
	key   Key
	value []byte
}

// NewMemoryStore 创建内存存储。maxEntries <= 0 表示不设上限。
func NewMemoryStore(maxEntries int, order EvictOrder) *MemoryStore {
	return &MemoryStore{
		maxEntries: maxEntries,
		order:      order,
		ll:         list.New(),
		items:      make(map[Key]*list.Element),
	}
}

func (s *MemoryStore) Get(_ context.Context, key Key) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}

	el, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	if s.order == EvictLRU {
		s.ll.MoveToFront(el)
	}
	value := el.Value.(*memoryEntry).value
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

func (s *MemoryStore) Put(_ context.Context, key Key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	if el, ok := s.items[key]; ok {
		// 同键重写：键不变则值语义一致，仅刷新访问序
		el.Value.(*memoryEntry).value = stored
		if s.order == EvictLRU {
			s.ll.MoveToFront(el)
		}
		return nil
	}

	if s.maxEntries > 0 {
		for s.ll.Len() >= s.maxEntries {
			s.evictOldest()
		}
	}
	s.items[key] = s.ll.PushFront(&memoryEntry{key: key, value: stored})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if el, ok := s.items[key]; ok {
		s.ll.Remove(el)
		delete(s.items, key)
	}
	return nil
}

func (s *MemoryStore) Len(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.ll.Len(), nil
}

func (s *MemoryStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.ll.Init()
	s.items = make(map[Key]*list.Element)
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// evictOldest 移除队尾条目：LRU 下是最久未使用，FIFO 下是最早写入。
func (s *MemoryStore) evictOldest() {
	el := s.ll.Back()
	if el == nil {
		return
	}
	s.ll.Remove(el)
	delete(s.items, el.Value.(*memoryEntry).key)
}
