package aicache

import (
	"testing"
)

func TestMemoryCache_GetSet(t *testing.T) {
	cache := NewMemoryCache(10)

	cache.Set("zh-CN||Hello", "你好")

	value, ok := cache.Get("zh-CN||Hello")
	if !ok {
		t.Fatal("expected cache hit")
	}
	if value != "你好" {
		t.Errorf("unexpected value: %s", value)
	}

	if _, ok := cache.Get("zh-CN||missing"); ok {
		t.Error("expected cache miss")
	}
}

func TestMemoryCache_NeverRewrites(t *testing.T) {
	cache := NewMemoryCache(10)

	cache.Set("k", "first")
	cache.Set("k", "second")

	value, _ := cache.Get("k")
	if value != "first" {
		t.Errorf("existing entry was rewritten: %s", value)
	}
}

func TestMemoryCache_InsertionOrderEviction(t *testing.T) {
	cache := NewMemoryCache(2)

	cache.Set("a", "1")
	cache.Set("b", "2")
	cache.Set("c", "3")

	if _, ok := cache.Get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, ok := cache.Get("b"); !ok {
		t.Error("entry b should survive")
	}
	if _, ok := cache.Get("c"); !ok {
		t.Error("entry c should survive")
	}
}

// 命中不刷新位置：淘汰按插入顺序而不是访问顺序
func TestMemoryCache_EvictionIgnoresAccess(t *testing.T) {
	cache := NewMemoryCache(2)

	cache.Set("a", "1")
	cache.Set("b", "2")

	// 访问a后插入c，被淘汰的仍然是a
	cache.Get("a")
	cache.Set("c", "3")

	if _, ok := cache.Get("a"); ok {
		t.Error("access should not refresh eviction order")
	}
}

func TestMemoryCache_SetManyIdempotent(t *testing.T) {
	cache := NewMemoryCache(10)

	entries := []Entry{
		{Key: "a", Content: "1"},
		{Key: "b", Content: "2"},
	}
	cache.SetMany(entries)
	cache.SetMany(entries)

	if cache.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", cache.Len())
	}
}

func TestMemoryCache_GetMany(t *testing.T) {
	cache := NewMemoryCache(10)
	cache.Set("a", "1")
	cache.Set("b", "2")

	found := cache.GetMany([]string{"a", "b", "c"})
	if len(found) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(found))
	}
	if found["a"] != "1" || found["b"] != "2" {
		t.Errorf("unexpected values: %v", found)
	}
	if _, ok := found["c"]; ok {
		t.Error("absent key must be omitted, not present")
	}
}

func TestKey_String(t *testing.T) {
	key := Key{SourceText: "Hello", TargetLang: "zh-CN"}
	if key.String() != "zh-CN||Hello" {
		t.Errorf("unexpected key: %s", key.String())
	}
}
