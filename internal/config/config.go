// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Log      LogConfig      `mapstructure:"log"`
	Identity IdentityConfig `mapstructure:"identity"`
	Chat     ChatConfig     `mapstructure:"chat"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// BackendConfig 存储查询引擎后端的配置。
type BackendConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout 返回单次后端调用的硬超时时间，未配置时默认为 45 秒。
func (c BackendConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// IdentityConfig 存储默认身份的配置。
// 当请求未携带认证协作方签发的 token 时，网关以该身份执行所有操作。
type IdentityConfig struct {
	DefaultUserID string `mapstructure:"default_user_id"`
}

// UserID 返回默认身份标识，未配置时与前端约定的 default-user 对齐。
func (c IdentityConfig) UserID() string {
	if c.DefaultUserID == "" {
		return "default-user"
	}
	return c.DefaultUserID
}

// ChatConfig 存储对话网关的行为参数。
type ChatConfig struct {
	SessionListLimit int `mapstructure:"session_list_limit"`
	HistoryLimit     int `mapstructure:"history_limit"`
}

// SessionLimit 返回会话列表的拉取上限。
func (c ChatConfig) SessionLimit() int {
	if c.SessionListLimit <= 0 {
		return 10
	}
	return c.SessionListLimit
}

// HistoryFetchLimit 返回单次历史回放的记录上限。
func (c ChatConfig) HistoryFetchLimit() int {
	if c.HistoryLimit <= 0 {
		return 50
	}
	return c.HistoryLimit
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}
}
