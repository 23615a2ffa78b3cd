// Package config 负责加载 yaml 配置文件与环境变量
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix 环境变量前缀，FORUM_DATABASE_HOST -> database.host
const EnvPrefix = "FORUM_"

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Redis    RedisConfig    `koanf:"redis"`
	Kafka    KafkaConfig    `koanf:"kafka"`
	JWT      JWTConfig      `koanf:"jwt"`
	SMTP     SMTPConfig     `koanf:"smtp"`
	Log      LogConfig      `koanf:"log"`
	Forum    ForumConfig    `koanf:"forum"`
}

type ServerConfig struct {
	Addr          string        `koanf:"addr"`
	Mode          string        `koanf:"mode"` // debug, release, test
	CORSOrigins   []string      `koanf:"cors_origins"`
	ReadTimeout   time.Duration `koanf:"read_timeout"`
	WriteTimeout  time.Duration `koanf:"write_timeout"`
	InternalToken string        `koanf:"internal_token"` // POST /notifications 的调用凭证
}

type DatabaseConfig struct {
	Driver       string        `koanf:"driver"` // mysql, postgres
	Host         string        `koanf:"host"`
	Port         int           `koanf:"port"`
	Username     string        `koanf:"username"`
	Password     string        `koanf:"password"`
	Database     string        `koanf:"database"`
	SSLMode      bool          `koanf:"sslmode"`
	LogLevel     string        `koanf:"log_level"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	MaxIdleConns int           `koanf:"max_idle_conns"`
	MaxLifetime  time.Duration `koanf:"max_lifetime"`
}

type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
	PoolSize int    `koanf:"pool_size"`
}

type KafkaConfig struct {
	Brokers         []string      `koanf:"brokers"`
	Topic           string        `koanf:"topic"`
	OutboxBatch     int           `koanf:"outbox_batch"`
	OutboxInterval  time.Duration `koanf:"outbox_interval"`
	// OutboxRetention 已投递事件的保留时长
	OutboxRetention time.Duration `koanf:"outbox_retention"`
}

type JWTConfig struct {
	AccessSecret  string        `koanf:"access_secret"`
	RefreshSecret string        `koanf:"refresh_secret"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
}

type SMTPConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
}

type LogConfig struct {
	Level  string `koanf:"level"`  // debug, info, warn, error
	Format string `koanf:"format"` // json, console
}

type ForumConfig struct {
	// SuperAdminName 按用户名（忽略大小写）授予的管理员身份
	SuperAdminName    string        `koanf:"super_admin_name"`
	// SuperAdminEmail 唯一允许注册上面这个名字的邮箱，为空时名字完全保留
	SuperAdminEmail   string        `koanf:"super_admin_email"`
	PushBuffer        int           `koanf:"push_buffer"`
	PushWriteTimeout  time.Duration `koanf:"push_write_timeout"`
	PendingListLimit  int           `koanf:"pending_list_limit"`
	NotificationLimit int           `koanf:"notification_limit"`
}

// Load 依次加载 .env、yaml 文件、环境变量（后者覆盖前者）
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// Default 返回所有字段都有可用值的配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			Mode:         "debug",
			CORSOrigins:  []string{"http://localhost:5173"},
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "mysql",
			Host:         "127.0.0.1",
			Port:         3306,
			Database:     "class_forum",
			LogLevel:     "warn",
			MaxOpenConns: 100,
			MaxIdleConns: 10,
			MaxLifetime:  time.Hour,
		},
		Redis: RedisConfig{
			Addr:     "127.0.0.1:6379",
			PoolSize: 10,
		},
		Kafka: KafkaConfig{
			Topic:           "forum.notifications",
			OutboxBatch:     200,
			OutboxInterval:  time.Second,
			OutboxRetention: 24 * time.Hour,
		},
		JWT: JWTConfig{
			AccessTTL:  30 * time.Minute,
			RefreshTTL: 24 * time.Hour,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Forum: ForumConfig{
			PushBuffer:        16,
			PushWriteTimeout:  5 * time.Second,
			PendingListLimit:  100,
			NotificationLimit: 50,
		},
	}
}
