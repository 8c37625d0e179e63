package config

import (
	"errors"
	"os"

	"github.com/spf13/viper"
)

// Load 加载配置。configPath 为空时在用户目录和当前目录
// 搜索 .feedai.yaml，找不到配置文件时返回默认配置。
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".feedai")
		v.SetConfigType("yaml")
	}

	// 环境变量兜底，方便不落盘的凭证注入
	v.SetEnvPrefix("FEEDAI")
	_ = v.BindEnv("provider.api_key", "FEEDAI_API_KEY")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			cfg := defaultConfig()
			cfg.Provider.APIKey = v.GetString("provider.api_key")
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	setDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// defaultConfig 创建默认配置
func defaultConfig() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// setDefaults 填充缺省值
func setDefaults(cfg *Config) {
	if cfg.Provider.APIEndpoint == "" {
		cfg.Provider.APIEndpoint = "https://api.openai.com/v1"
	}
	if cfg.Provider.Model == "" {
		cfg.Provider.Model = "gpt-4o-mini"
	}
	if cfg.Provider.Temperature == 0 {
		cfg.Provider.Temperature = 0.3
	}
	if cfg.Provider.TimeoutSeconds <= 0 {
		cfg.Provider.TimeoutSeconds = 120
	}
	if cfg.Provider.Concurrency <= 0 {
		cfg.Provider.Concurrency = 3
	}
	if cfg.Pipeline.Workers <= 0 {
		cfg.Pipeline.Workers = 2
	}
	if cfg.Pipeline.BatchSize <= 0 {
		cfg.Pipeline.BatchSize = 10
	}
	if cfg.Cache.Capacity <= 0 {
		cfg.Cache.Capacity = 1000
	}
	if cfg.TargetLanguage == "" {
		cfg.TargetLanguage = "zh-CN"
	}
}
