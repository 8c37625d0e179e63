// Package aicache 提供翻译结果的两级缓存：
// 进程内的易失缓存加上可批量读写的持久存储。
package aicache

// Key 缓存键，按 (原文, 目标语言) 唯一标识一条翻译
type Key struct {
	SourceText string
	TargetLang string
}

// String 返回存储用的字符串键。语言在前，
// 同一种目标语言的条目共享前缀，持久层可以按前缀读取。
func (k Key) String() string {
	return k.TargetLang + "||" + k.SourceText
}

// Entry 持久存储条目
type Entry struct {
	Key     string `json:"key"`
	Content string `json:"content"`
}

// CacheStats 缓存统计信息
type CacheStats struct {
	Hits   int64
	Misses int64
	Size   int64
}
