package cache

import (
	"bytes"
	"context"
	"fmt"
	"testing"
)

func TestMemoryStorePutGet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, EvictLRU)

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

	// 同键重写更新值
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

func TestMemoryStoreLRUEviction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, EvictLRU)

	s.Put(ctx, "a", []byte("1"))
	s.Put(ctx, "b", []byte("2"))

	// 读 a 刷新其访问序，容量满时应驱逐 b
	if _, ok, _ := s.Get(ctx, "a"); !ok {
		t.Fatal("expected hit on a")
	}
	s.Put(ctx, "c", []byte("3"))

	if _, ok, _ := s.Get(ctx, "b"); ok {
		t.Fatal("expected b to be evicted")
	}
	if _, ok, _ := s.Get(ctx, "a"); !ok {
		t.Fatal("expected a to survive")
	}
	if _, ok, _ := s.Get(ctx, "c"); !ok {
		t.Fatal("expected c to be resident")
	}
}

func TestMemoryStoreFIFOEviction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, EvictFIFO)

	s.Put(ctx, "a", []byte("1"))
	s.Put(ctx, "b", []byte("2"))

	// FIFO 下读取不刷新顺序，最早写入的 a 仍然最先被驱逐
	s.Get(ctx, "a")
	s.Put(ctx, "c", []byte("3"))

	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Fatal("expected a to be evicted under FIFO")
	}
	if _, ok, _ := s.Get(ctx, "b"); !ok {
		t.Fatal("expected b to survive")
	}
}

func TestMemoryStoreBound(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(5, EvictLRU)

	for i := 0; i < 20; i++ {
		s.Put(ctx, Key(fmt.Sprintf("k%d", i)), []byte("v"))
	}
	if n, _ := s.Len(ctx); n != 5 {
		t.Fatalf("len = %d, want bound 5", n)
	}
}

func TestMemoryStoreFlushAndClose(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, EvictLRU)

	s.Put(ctx, "a", []byte("1"))
	if err := s.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if n, _ := s.Len(ctx); n != 0 {
		t.Fatalf("len after flush = %d, want 0", n)
	}

	s.Close()
	if _, _, err := s.Get(ctx, "a"); err != ErrClosed {
		t.Fatalf("expected ErrClosed after close, got %v", err)
	}
	if err := s.Put(ctx, "a", []byte("1")); err != ErrClosed {
		t.Fatalf("expected ErrClosed on put after close, got %v", err)
	}
}
