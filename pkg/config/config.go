package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ExchangeConfig 交易所连接配置
type ExchangeConfig struct {
	BaseURL        string
	SocketURL      string
	Username       string
	Password       string
	Currency       string
	CommissionRate decimal.Decimal
}

// TimeoutConfig 两个请求档位的超时配置（秒）
type TimeoutConfig struct {
	TradingSeconds   int
	ReportingSeconds int
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Config 应用配置
type Config struct {
	Exchange ExchangeConfig
	Timeouts TimeoutConfig
	Log      LogConfig
}

// ConfigFile 配置文件结构（用于 YAML 解析）
type ConfigFile struct {
	Exchange struct {
		BaseURL        string `yaml:"base_url"`
		SocketURL      string `yaml:"socket_url"`
		Username       string `yaml:"username"`
		Password       string `yaml:"password"`
		Currency       string `yaml:"currency"`
		CommissionRate string `yaml:"commission_rate"`
	} `yaml:"exchange"`
	Timeouts struct {
		TradingSeconds   int `yaml:"trading_seconds"`
		ReportingSeconds int `yaml:"reporting_seconds"`
	} `yaml:"timeouts"`
	Log struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
		Compress   bool   `yaml:"compress"`
	} `yaml:"log"`
}

const (
	DefaultBaseURL   = "https://api.4casters.io/"
	DefaultSocketURL = "wss://socket-api.4casters.io/"
)

// Load 从 YAML 文件加载配置；path 为空时只使用环境变量和默认值
func Load(path string) (*Config, error) {
	var cf ConfigFile
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("读取配置文件失败 %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cf); err != nil {
			return nil, fmt.Errorf("解析 YAML 配置文件失败 %s: %w", path, err)
		}
	}

	// 优先级：配置文件 > 环境变量 > 默认值
	commissionStr := firstNonEmpty(cf.Exchange.CommissionRate, getEnv("EXCHANGE_COMMISSION_RATE", ""), "1.0")
	commission, err := decimal.NewFromString(commissionStr)
	if err != nil {
		return nil, fmt.Errorf("commission_rate 无效: %w", err)
	}

	config := &Config{
		Exchange: ExchangeConfig{
			BaseURL:        firstNonEmpty(cf.Exchange.BaseURL, getEnv("EXCHANGE_BASE_URL", ""), DefaultBaseURL),
			SocketURL:      firstNonEmpty(cf.Exchange.SocketURL, getEnv("EXCHANGE_SOCKET_URL", ""), DefaultSocketURL),
			Username:       firstNonEmpty(cf.Exchange.Username, getEnv("EXCHANGE_USERNAME", "")),
			Password:       firstNonEmpty(cf.Exchange.Password, getEnv("EXCHANGE_PASSWORD", "")),
			Currency:       firstNonEmpty(cf.Exchange.Currency, getEnv("EXCHANGE_CURRENCY", ""), "USD"),
			CommissionRate: commission,
		},
		Timeouts: TimeoutConfig{
			TradingSeconds:   firstPositive(cf.Timeouts.TradingSeconds, parseIntEnv("EXCHANGE_TRADING_TIMEOUT", 0), 10),
			ReportingSeconds: firstPositive(cf.Timeouts.ReportingSeconds, parseIntEnv("EXCHANGE_REPORTING_TIMEOUT", 0), 60),
		},
		Log: LogConfig{
			Level:      firstNonEmpty(cf.Log.Level, getEnv("LOG_LEVEL", ""), "info"),
			File:       firstNonEmpty(cf.Log.File, getEnv("LOG_FILE", "")),
			MaxSizeMB:  firstPositive(cf.Log.MaxSizeMB, 100),
			MaxBackups: firstPositive(cf.Log.MaxBackups, 3),
			MaxAgeDays: firstPositive(cf.Log.MaxAgeDays, 7),
			Compress:   cf.Log.Compress,
		},
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	return config, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Exchange.Username == "" {
		return fmt.Errorf("exchange.username 未配置")
	}
	if c.Exchange.Password == "" {
		return fmt.Errorf("exchange.password 未配置")
	}
	if c.Exchange.CommissionRate.IsNegative() || c.Exchange.CommissionRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("exchange.commission_rate 必须在 0 到 1 之间")
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
