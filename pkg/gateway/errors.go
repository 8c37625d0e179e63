package gateway

import (
	"context"
	"errors"
	"fmt"
)

// 预定义错误
var (
	// ErrNotConfigured 未配置API凭证，在占用并发槽位之前就会失败
	ErrNotConfigured = errors.New("AI provider not configured")

	// ErrCancelled 调用被取消（用户取消或超时）
	ErrCancelled = errors.New("request cancelled")
)

// ProviderError AI服务端返回的非2xx错误
type ProviderError struct {
	Status  int    // HTTP状态码
	Message string // 服务端错误消息
}

// Error 实现error接口
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (HTTP %d): %s", e.Status, e.Message)
}

// wrapCancelled 将context取消/超时归一为ErrCancelled
func wrapCancelled(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrCancelled, err)
	}
	return err
}
