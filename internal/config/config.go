package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体（完全匹配config.yaml）
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`   // 服务器配置
	Database DatabaseConfig `mapstructure:"database"` // PostgreSQL配置
	Admin    AdminConfig    `mapstructure:"admin"`    // 管理端配置
	Webhook  WebhookConfig  `mapstructure:"webhook"`  // 领域事件Webhook配置
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `mapstructure:"port"` // 服务端口
	Mode string `mapstructure:"mode"` // Gin运行模式：debug/release/test
}

// DatabaseConfig PostgreSQL数据库配置
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`               // 连接DSN
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大存活时间
}

// AdminConfig 管理端配置。鉴权由外围系统负责，这里只校验管理令牌
type AdminConfig struct {
	Token string `mapstructure:"token"` // 管理操作令牌（X-Admin-Token）
}

// WebhookConfig 领域事件Webhook配置：事件提交后推送给订阅方（外围读层做缓存失效）
type WebhookConfig struct {
	URLs    []string `mapstructure:"urls"`    // 订阅方地址列表，空则不推送
	Timeout int      `mapstructure:"timeout"` // 推送超时（秒）
	Proxy   string   `mapstructure:"proxy"`   // 代理地址（可选）
}

// LoadConfig 加载配置文件（config/config.yaml），敏感项从 .env 覆盖（不提交 git）
func LoadConfig() (*Config, error) {
	// 1. 加载 .env（若存在），env 中的值会覆盖 config.yaml 中同名字段
	_ = godotenv.Load() // 忽略错误（.env 可不存在）

	// 2. 读取 config.yaml
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	viper.SetTypeByDefaultValue(true)
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 3. 敏感字段：用 env 覆盖（优先级 env > yaml）
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// overrideFromEnv 用环境变量覆盖敏感配置
func overrideFromEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Admin.Token = v
	}
	if v := os.Getenv("WEBHOOK_PROXY"); v != "" {
		cfg.Webhook.Proxy = v
	}
}

// TimeoutDuration Webhook推送超时时间，未配置时默认5秒
func (w *WebhookConfig) TimeoutDuration() time.Duration {
	if w.Timeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(w.Timeout) * time.Second
}
