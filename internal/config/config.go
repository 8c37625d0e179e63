package config

import (
	"fmt"
	"time"

	"golang.org/x/text/language"

	"github.com/lumenfeed/go-feed-ai/pkg/gateway"
	"github.com/lumenfeed/go-feed-ai/pkg/pipeline"
)

// Config 应用配置
type Config struct {
	// Provider AI服务商配置
	Provider ProviderConfig `mapstructure:"provider"`

	// Pipeline 批处理工作池配置
	Pipeline PipelineConfig `mapstructure:"pipeline"`

	// Cache 缓存配置
	Cache CacheConfig `mapstructure:"cache"`

	// TargetLanguage 默认目标语言（BCP 47）
	TargetLanguage string `mapstructure:"target_language"`
}

// ProviderConfig AI服务商配置
type ProviderConfig struct {
	APIEndpoint string  `mapstructure:"api_endpoint"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
	// TimeoutSeconds 单次调用超时（秒）
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	// Concurrency 全局并发上限
	Concurrency int `mapstructure:"concurrency"`
}

// PipelineConfig 批处理工作池配置
type PipelineConfig struct {
	Workers   int `mapstructure:"workers"`
	BatchSize int `mapstructure:"batch_size"`
}

// CacheConfig 缓存配置
type CacheConfig struct {
	// Capacity 内存层容量
	Capacity int `mapstructure:"capacity"`
	// Dir 持久层目录，留空时不启用持久缓存
	Dir string `mapstructure:"dir"`
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.TargetLanguage != "" {
		if _, err := language.Parse(c.TargetLanguage); err != nil {
			return fmt.Errorf("invalid target language %q: %w", c.TargetLanguage, err)
		}
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return fmt.Errorf("temperature out of range: %v", c.Provider.Temperature)
	}
	return nil
}

// GatewayConfig 转换为网关配置
func (c *Config) GatewayConfig() gateway.Config {
	return gateway.Config{
		APIEndpoint: c.Provider.APIEndpoint,
		APIKey:      c.Provider.APIKey,
		Model:       c.Provider.Model,
		Temperature: c.Provider.Temperature,
		Timeout:     time.Duration(c.Provider.TimeoutSeconds) * time.Second,
		Concurrency: c.Provider.Concurrency,
	}
}

// PipelineSettings 转换为工作池配置
func (c *Config) PipelineSettings() pipeline.Config {
	return pipeline.Config{
		Workers:   c.Pipeline.Workers,
		BatchSize: c.Pipeline.BatchSize,
	}
}
