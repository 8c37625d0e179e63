// Package gateway 负责对AI服务商的出站调用：
// 全局并发准入、取消与超时的合并、流式响应的增量解码。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultTimeout 单次调用的默认超时时间
const DefaultTimeout = 120 * time.Second

// Config 网关配置
type Config struct {
	APIEndpoint string        `json:"api_endpoint"`
	APIKey      string        `json:"api_key"`
	Model       string        `json:"model"`
	Temperature float32       `json:"temperature"`
	Timeout     time.Duration `json:"timeout"`
	// Concurrency 全局并发上限，所有调用方共享
	Concurrency int `json:"concurrency"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		APIEndpoint: "https://api.openai.com/v1",
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		Timeout:     DefaultTimeout,
		Concurrency: 3,
	}
}

// Client AI服务商网关
type Client struct {
	config     Config
	httpClient *http.Client
	sem        *Semaphore
	logger     *zap.Logger
}

// Option 网关配置选项函数
type Option func(*Client)

// WithLogger 设置logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient 设置HTTP客户端
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// New 创建网关客户端
func New(config Config, opts ...Option) *Client {
	if config.APIEndpoint == "" {
		config.APIEndpoint = "https://api.openai.com/v1"
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}

	c := &Client{
		config: config,
		// 超时由每次调用的context控制，流式响应不能挂在客户端超时上
		httpClient: &http.Client{},
		sem:        NewSemaphore(config.Concurrency),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured 是否已配置API凭证
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

// Semaphore 返回内部信号量，供测试观察准入状态
func (c *Client) Semaphore() *Semaphore {
	return c.sem
}

// chatRequest 聊天请求
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

// chatMessage 聊天消息
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse 非流式聊天响应
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// apiError 服务端错误响应
type apiError struct {
	ErrorInfo struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Call 执行一次AI调用并返回完整文本。
// onChunk 非空时走流式路径，每个增量文本片段回调一次；
// 取消来自调用方ctx与内部超时的合并，先到先生效。
// 调用前必须获得一个并发槽位，任何返回路径都会释放槽位。
func (c *Client) Call(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	if !c.Configured() {
		return "", ErrNotConfigured
	}

	// 合并调用方取消与内部超时
	callCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if err := c.sem.Acquire(callCtx); err != nil {
		// 排队期间被取消，槽位未被占用
		return "", wrapCancelled(err)
	}
	defer c.sem.Release()

	return c.doCall(callCtx, prompt, onChunk)
}

// doCall 执行HTTP调用，调用方已持有并发槽位
func (c *Client) doCall(ctx context.Context, prompt string, onChunk func(string)) (string, error) {
	streaming := onChunk != nil

	body, err := json.Marshal(chatRequest{
		Model:       c.config.Model,
		Temperature: c.config.Temperature,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Stream:      streaming,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.APIEndpoint+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	if streaming {
		httpReq.Header.Set("Accept", "text/event-stream")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", wrapCancelled(ctx.Err())
		}
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)

		message := resp.Status
		var apiErr apiError
		if json.Unmarshal(errBody, &apiErr) == nil && apiErr.ErrorInfo.Message != "" {
			message = apiErr.ErrorInfo.Message
		}
		return "", &ProviderError{Status: resp.StatusCode, Message: message}
	}

	if streaming {
		text, err := c.decodeStream(ctx, resp.Body, onChunk)
		if err != nil {
			if ctx.Err() != nil {
				return "", wrapCancelled(ctx.Err())
			}
			return "", err
		}
		return text, nil
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		if ctx.Err() != nil {
			return "", wrapCancelled(ctx.Err())
		}
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from provider")
	}
	return chatResp.Choices[0].Message.Content, nil
}
