package aicache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// durableWriteTimeout 持久层异步写入的超时时间
const durableWriteTimeout = 10 * time.Second

// Tiered 两级缓存：先查内存，再批量查持久存储。
// 持久层写入是 fire-and-forget 的，失败只记日志，不影响调用方。
type Tiered struct {
	memory *MemoryCache
	store  Store
	logger *zap.Logger
	wg     sync.WaitGroup
}

// TieredOption Tiered缓存配置选项
type TieredOption func(*Tiered)

// WithStore 设置持久存储
func WithStore(store Store) TieredOption {
	return func(t *Tiered) {
		t.store = store
	}
}

// WithLogger 设置logger
func WithLogger(logger *zap.Logger) TieredOption {
	return func(t *Tiered) {
		t.logger = logger
	}
}

// NewTiered 创建两级缓存。未配置持久存储时只使用内存层。
func NewTiered(capacity int, opts ...TieredOption) *Tiered {
	t := &Tiered{
		memory: NewMemoryCache(capacity),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// LookupMany 批量查找。查找顺序固定为 内存 -> 持久存储，
// 持久层命中的条目会被提升到内存层。缺失的键直接省略。
func (t *Tiered) LookupMany(ctx context.Context, keys []Key) map[string]string {
	rawKeys := make([]string, len(keys))
	for i, k := range keys {
		rawKeys[i] = k.String()
	}

	found := t.memory.GetMany(rawKeys)
	if len(found) == len(keys) || t.store == nil {
		return found
	}

	// 内存未命中的键按语言前缀分组，每个前缀一次批量持久层读取
	missing := make(map[string][]string)
	for i, k := range keys {
		if _, ok := found[rawKeys[i]]; ok {
			continue
		}
		prefix := k.TargetLang + "||"
		missing[prefix] = append(missing[prefix], rawKeys[i])
	}

	var promoted []Entry
	for prefix, group := range missing {
		stored, err := t.store.BatchGet(ctx, prefix)
		if err != nil {
			t.logger.Warn("durable cache lookup failed", zap.Error(err))
			continue
		}
		for _, key := range group {
			if value, ok := stored[key]; ok {
				found[key] = value
				promoted = append(promoted, Entry{Key: key, Content: value})
			}
		}
	}
	if len(promoted) > 0 {
		t.memory.SetMany(promoted)
	}
	return found
}

// WriteMany 批量写入新条目。内存层同步写入，持久层异步写入。
// 已存在的键不会被改写，重复调用是幂等的。
func (t *Tiered) WriteMany(ctx context.Context, entries []Entry) {
	if len(entries) == 0 {
		return
	}

	t.memory.SetMany(entries)

	if t.store == nil {
		return
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		writeCtx, cancel := context.WithTimeout(context.Background(), durableWriteTimeout)
		defer cancel()

		if err := t.store.BatchSet(writeCtx, entries); err != nil {
			// 翻译本身已经成功，持久化失败只记日志
			t.logger.Warn("durable cache write failed",
				zap.Int("entries", len(entries)),
				zap.Error(err))
		}
	}()
}

// Flush 等待所有未完成的持久层写入，用于退出前收尾
func (t *Tiered) Flush() {
	t.wg.Wait()
}

// Stats 获取内存层统计信息
func (t *Tiered) Stats() CacheStats {
	return t.memory.Stats()
}
