package aicache

import (
	"sync"
)

// DefaultCapacity 内存缓存默认容量
const DefaultCapacity = 1000

// MemoryCache 带容量上限的内存缓存。
// 容量超限时按插入顺序淘汰最早写入的条目（不是LRU，命中不会刷新位置）。
type MemoryCache struct {
	capacity int
	data     map[string]string
	order    []string // 插入顺序
	stats    CacheStats
	mutex    sync.RWMutex
}

// NewMemoryCache 创建内存缓存，capacity <= 0 时使用默认容量
func NewMemoryCache(capacity int) *MemoryCache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryCache{
		capacity: capacity,
		data:     make(map[string]string),
	}
}

// Get 获取缓存
func (c *MemoryCache) Get(key string) (string, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	value, exists := c.data[key]
	if !exists {
		c.stats.Misses++
		return "", false
	}

	c.stats.Hits++
	return value, true
}

// GetMany 批量获取缓存，只返回存在的键
func (c *MemoryCache) GetMany(keys []string) map[string]string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	found := make(map[string]string)
	for _, key := range keys {
		if value, ok := c.data[key]; ok {
			c.stats.Hits++
			found[key] = value
		} else {
			c.stats.Misses++
		}
	}
	return found
}

// Set 写入缓存。已存在的键不会被改写。
func (c *MemoryCache) Set(key, value string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.set(key, value)
}

// SetMany 批量写入缓存，重复写入相同条目是幂等的
func (c *MemoryCache) SetMany(entries []Entry) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	for _, entry := range entries {
		c.set(entry.Key, entry.Content)
	}
}

// set 写入单个条目并按需淘汰，调用方必须持有锁
func (c *MemoryCache) set(key, value string) {
	if _, exists := c.data[key]; exists {
		return
	}

	c.data[key] = value
	c.order = append(c.order, key)

	// 超出容量时淘汰最早插入的条目
	for len(c.data) > c.capacity && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.data, oldest)
	}
	c.stats.Size = int64(len(c.data))
}

// Clear 清除所有缓存
func (c *MemoryCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.data = make(map[string]string)
	c.order = nil
	c.stats = CacheStats{}
}

// Len 返回当前条目数
func (c *MemoryCache) Len() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.data)
}

// Stats 获取缓存统计信息
func (c *MemoryCache) Stats() CacheStats {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	stats := c.stats
	stats.Size = int64(len(c.data))
	return stats
}
