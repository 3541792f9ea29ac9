// Package config 负责集中式配置加载
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const defaultPort = 10224

// ServerConfig HTTP 服务相关配置。
type ServerConfig struct {
	Port        int      `mapstructure:"port" validate:"gt=0,lt=65536"`
	LogLevel    string   `mapstructure:"log_level"`
	PprofAddr   string   `mapstructure:"pprof_addr"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// AuthConfig 鉴权相关配置。JWTSecret 为空时使用内建默认密钥。
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl" validate:"gt=0"`
}

// EngineConfig 查询引擎配置。DSN 为空时使用内存库。
type EngineConfig struct {
	DSN           string `mapstructure:"dsn"`
	EncryptionKey string `mapstructure:"encryption_key"`
}

// ActionConfig 动作执行器配置。
type ActionConfig struct {
	MaxDepth int `mapstructure:"max_depth" validate:"gte=1"`
}

// CacheConfig 各级缓存的容量与过期时间。
type CacheConfig struct {
	SchemaEntries int           `mapstructure:"schema_entries" validate:"gte=1"`
	SchemaTTL     time.Duration `mapstructure:"schema_ttl" validate:"gt=0"`
	ConnectionTTL time.Duration `mapstructure:"connection_ttl" validate:"gt=0"`
	PermissionTTL time.Duration `mapstructure:"permission_ttl" validate:"gt=0"`
}

// RemoteConnectorConfig 描述一个启动时接入的远程 gRPC 连接器。
type RemoteConnectorConfig struct {
	ID      string `mapstructure:"id" validate:"required"`
	Name    string `mapstructure:"name"`
	Address string `mapstructure:"address" validate:"required"`
}

// ConnectorsConfig 启动时装配的连接器清单。内建连接器始终启用，
// 这里只列需要额外接入的远程实例。
type ConnectorsConfig struct {
	Remotes []RemoteConnectorConfig `mapstructure:"remotes" validate:"dive"`
}

// RateLimitConfig 速率限制配置。
type RateLimitConfig struct {
	GlobalPerSecond float64 `mapstructure:"global_per_second" validate:"gt=0"`
	GlobalBurst     int     `mapstructure:"global_burst" validate:"gte=1"`
	IPPerMinute     float64 `mapstructure:"ip_per_minute" validate:"gt=0"`
	IPBurst         int     `mapstructure:"ip_burst" validate:"gte=1"`
	UserPerSecond   float64 `mapstructure:"user_per_second" validate:"gt=0"`
	UserBurst       int     `mapstructure:"user_burst" validate:"gte=1"`
	AppPerSecond    float64 `mapstructure:"app_per_second" validate:"gt=0"`
	AppBurst        int     `mapstructure:"app_burst" validate:"gte=1"`
}

// Config 结构体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Actions    ActionConfig     `mapstructure:"actions"`
	Cache      CacheConfig      `mapstructure:"cache"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Connectors ConnectorsConfig `mapstructure:"connectors"`
	DataDir    string           `mapstructure:"data_dir" validate:"required"`
}

// Load 加载配置。优先级：环境变量 (SCHEMAFX_*) > 配置文件 > 内建默认值。
// path 为空时在 ./configs 和当前目录查找 config.yaml，找不到不算错误。
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("读取配置文件 '%s' 失败: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		}
	}

	v.SetEnvPrefix("SCHEMAFX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置到结构体失败: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("配置校验失败: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", defaultPort)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.pprof_addr", "")
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("engine.dsn", "")
	v.SetDefault("engine.encryption_key", "")
	v.SetDefault("actions.max_depth", 16)
	v.SetDefault("cache.schema_entries", 1000)
	v.SetDefault("cache.schema_ttl", "5m")
	v.SetDefault("cache.connection_ttl", "5m")
	v.SetDefault("cache.permission_ttl", "5m")
	v.SetDefault("rate_limit.global_per_second", 10)
	v.SetDefault("rate_limit.global_burst", 30)
	v.SetDefault("rate_limit.ip_per_minute", 60)
	v.SetDefault("rate_limit.ip_burst", 20)
	v.SetDefault("rate_limit.user_per_second", 5)
	v.SetDefault("rate_limit.user_burst", 15)
	v.SetDefault("rate_limit.app_per_second", 20)
	v.SetDefault("rate_limit.app_burst", 40)
	v.SetDefault("data_dir", "instance")
}
