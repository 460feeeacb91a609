package sqlitedb

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"deepsearch/internal/cache"
)

func openTestStore(t *testing.T, path string, maxEntries int, order cache.EvictOrder) *CacheStore {
	t.Helper()
	s, err := NewCacheStore(path, maxEntries, order)
	if err != nil {
		t.Fatalf("open cache store: %v", err)
	}
	return s
}

func TestCacheStorePutGet(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	s := openTestStore(t, path, 10, cache.EvictLRU)
	defer s.Close()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := s.Put(ctx, "k1", []byte("v1")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, ok, err := s.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("got %q, want v1", got)
	}

	if err := s.Put(ctx, "k1", []byte("v2")); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, _, _ = s.Get(ctx, "k1")
	if !bytes.Equal(got, []byte("v2")) {
		t.Fatalf("got %q after overwrite, want v2", got)
	}
	if n, _ := s.Len(ctx); n != 1 {
		t.Fatalf("len = %d, want 1", n)
	}
}

func TestCacheStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")

	s := openTestStore(t, path, 10, cache.EvictLRU)
	if err := s.Put(ctx, "persisted", []byte("value")); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	s2 := openTestStore(t, path, 10, cache.EvictLRU)
	defer s2.Close()

	got, ok, err := s2.Get(ctx, "persisted")
	if err != nil || !ok {
		t.Fatalf("expected entry to survive reopen, got ok=%v err=%v", ok, err)
	}
	if !bytes.Equal(got, []byte("value")) {
		t.Fatalf("got %q after reopen, want value", got)
	}
}

func TestCacheStoreLRUEviction(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	s := openTestStore(t, path, 2, cache.EvictLRU)
	defer s.Close()

	s.Put(ctx, "a", []byte("1"))
	s.Put(ctx, "b", []byte("2"))

	// 读 a 刷新访问序，下一次驱逐应淘汰 b
	if _, ok, err := s.Get(ctx, "a"); err != nil || !ok {
		t.Fatalf("expected hit on a, got ok=%v err=%v", ok, err)
	}
	s.Put(ctx, "c", []byte("3"))

	if _, ok, _ := s.Get(ctx, "b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if _, ok, _ := s.Get(ctx, "a"); !ok {
		t.Fatal("expected a to survive")
	}
}

func TestCacheStoreFIFOEviction(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	s := openTestStore(t, path, 2, cache.EvictFIFO)
	defer s.Close()

	s.Put(ctx, "a", []byte("1"))
	s.Put(ctx, "b", []byte("2"))

	// FIFO 按写入时间驱逐，读取不影响顺序
	s.Get(ctx, "a")
	s.Put(ctx, "c", []byte("3"))

	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatal("expected a to be evicted under FIFO")
	}
	if _, ok, _ := s.Get(ctx, "b"); !ok {
		t.Fatal("expected b to survive")
	}
}

func TestCacheStoreBound(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	s := openTestStore(t, path, 5, cache.EvictLRU)
	defer s.Close()

	for i := 0; i < 20; i++ {
		if err := s.Put(ctx, cache.Key(fmt.Sprintf("k%d", i)), []byte("v")); err != nil {
			t.Fatalf("put %d failed: %v", i, err)
		}
	}
	if n, _ := s.Len(ctx); n != 5 {
		t.Fatalf("len = %d, want bound 5", n)
	}
}

func TestCacheStoreDeleteAndFlush(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	s := openTestStore(t, path, 10, cache.EvictLRU)
	defer s.Close()

	s.Put(ctx, "a", []byte("1"))
	s.Put(ctx, "b", []byte("2"))

	if err := s.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatal("expected a to be deleted")
	}

	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if n, _ := s.Len(ctx); n != 0 {
		t.Fatalf("len after flush = %d, want 0", n)
	}
}
