// Package policy 按 内容条目 -> 所属分组 -> 默认关闭 的继承顺序
// 决定某个AI功能是否对某条内容生效。
package policy

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Feature AI功能
type Feature string

const (
	// FeatureTitleTranslation 标题翻译
	FeatureTitleTranslation Feature = "titleTranslation"
	// FeatureFullTranslation 全文翻译
	FeatureFullTranslation Feature = "fullTranslation"
	// FeatureSummary 摘要
	FeatureSummary Feature = "summary"
)

// Scope 开关的作用域
type Scope string

const (
	// ScopeUnit 单条内容
	ScopeUnit Scope = "unit"
	// ScopeGroup 分组
	ScopeGroup Scope = "group"
)

// Value 开关取值
type Value string

const (
	// ValueOn 开启
	ValueOn Value = "on"
	// ValueOff 关闭
	ValueOff Value = "off"
	// ValueInherit 继承上级，等价于删除该开关而不是存储哨兵值
	ValueInherit Value = "inherit"
)

// OverrideEntry 批量设置用的单条更新
type OverrideEntry struct {
	Scope   Scope
	ID      string
	Feature Feature
	Value   Value
}

// GroupLookup 查询内容条目所属的分组
type GroupLookup func(unitID string) (groupID string, ok bool)

// Resolver 功能开关解析器
type Resolver struct {
	store      Store
	groups     GroupLookup
	configured func() bool
	logger     *zap.Logger

	mutex     sync.RWMutex
	overrides map[string]bool
}

// ResolverOption 解析器配置选项
type ResolverOption func(*Resolver)

// WithGroupLookup 设置分组查询函数
func WithGroupLookup(lookup GroupLookup) ResolverOption {
	return func(r *Resolver) {
		r.groups = lookup
	}
}

// WithConfigured 设置服务商凭证检查函数
func WithConfigured(configured func() bool) ResolverOption {
	return func(r *Resolver) {
		r.configured = configured
	}
}

// WithLogger 设置logger
func WithLogger(logger *zap.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// NewResolver 创建解析器并从存储加载已有开关
func NewResolver(store Store, opts ...ResolverOption) (*Resolver, error) {
	r := &Resolver{
		store:      store,
		groups:     func(string) (string, bool) { return "", false },
		configured: func() bool { return true },
		logger:     zap.NewNop(),
		overrides:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}

	if store != nil {
		overrides, err := store.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load overrides: %w", err)
		}
		if overrides != nil {
			r.overrides = overrides
		}
	}
	return r, nil
}

// overrideKey 开关的存储键
func overrideKey(scope Scope, id string, feature Feature) string {
	return string(scope) + "||" + id + "||" + string(feature)
}

// ShouldApply 判断功能是否对某条内容生效。
// 服务商未配置时一律返回false；否则依次检查
// 条目级开关、分组级开关，都没有时默认关闭。
func (r *Resolver) ShouldApply(unitID string, feature Feature) bool {
	if !r.configured() {
		return false
	}

	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if value, ok := r.overrides[overrideKey(ScopeUnit, unitID, feature)]; ok {
		return value
	}

	if groupID, ok := r.groups(unitID); ok {
		if value, ok := r.overrides[overrideKey(ScopeGroup, groupID, feature)]; ok {
			return value
		}
	}
	return false
}

// SetOverride 设置单个开关并持久化。
// ValueInherit 删除已存储的开关，让解析回落到上级。
func (r *Resolver) SetOverride(scope Scope, id string, feature Feature, value Value) error {
	return r.SetBatch([]OverrideEntry{{Scope: scope, ID: id, Feature: feature, Value: value}})
}

// SetBatch 原子地应用一批更新，并作为单次写入持久化。
// 用于整组切换的场景：分组开关变更的同时把每个子条目重置为继承。
func (r *Resolver) SetBatch(entries []OverrideEntry) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, entry := range entries {
		key := overrideKey(entry.Scope, entry.ID, entry.Feature)
		switch entry.Value {
		case ValueOn:
			r.overrides[key] = true
		case ValueOff:
			r.overrides[key] = false
		case ValueInherit:
			delete(r.overrides, key)
		default:
			return fmt.Errorf("invalid override value: %q", entry.Value)
		}
	}

	if r.store == nil {
		return nil
	}
	if err := r.store.Save(r.overrides); err != nil {
		return fmt.Errorf("failed to persist overrides: %w", err)
	}
	return nil
}
