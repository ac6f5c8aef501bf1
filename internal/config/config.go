package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig `mapstructure:"log"`
	Database  DatabaseConfig
	JWT       JWTConfig
	Storage   StorageConfig
	Tracing   TracingConfig `mapstructure:"tracing"`
	Redis     RedisConfig
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Exam      ExamConfig      `mapstructure:"exam"`
	Catalog   CatalogConfig   `mapstructure:"catalog"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Payment   PaymentConfig   `mapstructure:"payment"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"` // 强制执行数据库迁移
	MigrateOnly  bool `mapstructure:"-"` // 仅迁移模式（迁移后退出）
	Seed         bool `mapstructure:"-"` // 写入内置题库
}

type ServerConfig struct {
	Port string
	Mode string
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

type DatabaseConfig struct {
	Driver    string `mapstructure:"driver"` // mysql | postgres
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"sslmode"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	PublicURL     string `mapstructure:"public_url"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ServiceName       string `mapstructure:"service_name"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

type ExamConfig struct {
	LowTimeWarningSeconds int     `mapstructure:"low_time_warning_seconds"`
	PassPercentage        float64 `mapstructure:"pass_percentage"`
	ExpirySweep           string  `mapstructure:"expiry_sweep"` // cron 表达式
}

type CatalogConfig struct {
	FallbackPolicy  string `mapstructure:"fallback_policy"`
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
}

type AuthConfig struct {
	MagicLinkTTLMinutes int      `mapstructure:"magic_link_ttl_minutes"`
	MagicLinkBaseURL    string   `mapstructure:"magic_link_base_url"`
	BootstrapAdmins     []string `mapstructure:"bootstrap_admins"`
}

type PaymentConfig struct {
	MidtransServerKey  string `mapstructure:"midtrans_server_key"`
	MidtransProduction bool   `mapstructure:"midtrans_production"`
	PendingTTLHours    int    `mapstructure:"pending_ttl_hours"`
	Currency           string `mapstructure:"currency"`
}

// ErrMissingConfig 启动必需的配置项缺失
var ErrMissingConfig = errors.New("missing required configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("log.level", "")
	v.SetDefault("log.file", "logs/app.log")
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("jwt.expire_hours", 72)
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")
	v.SetDefault("storage.public_url", "/uploads")
	v.SetDefault("tracing.service_name", "exam-practice")
	v.SetDefault("rate_limit.max_requests", 300)
	v.SetDefault("rate_limit.window_minutes", 1)
	v.SetDefault("exam.low_time_warning_seconds", 60)
	v.SetDefault("exam.pass_percentage", 70)
	v.SetDefault("exam.expiry_sweep", "@every 1m")
	v.SetDefault("catalog.fallback_policy", "fail_closed")
	v.SetDefault("catalog.cache_ttl_seconds", 300)
	v.SetDefault("auth.magic_link_ttl_minutes", 15)
	v.SetDefault("auth.magic_link_base_url", "http://localhost:3000/auth/callback")
	v.SetDefault("payment.pending_ttl_hours", 24)
	v.SetDefault("payment.currency", "IDR")
}

func LoadConfig(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("EXAM_PRACTICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.port", "SERVER_PORT")
	v.BindEnv("server.mode", "SERVER_MODE")

	// Storage / OSS
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.service_name", "TRACING_SERVICE_NAME")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Payment
	v.BindEnv("payment.midtrans_server_key", "MIDTRANS_SERVER_KEY")
	v.BindEnv("payment.midtrans_production", "MIDTRANS_PRODUCTION")

	// Auth
	v.BindEnv("auth.magic_link_base_url", "MAGIC_LINK_BASE_URL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour
	for i, email := range cfg.Auth.BootstrapAdmins {
		cfg.Auth.BootstrapAdmins[i] = strings.ToLower(strings.TrimSpace(email))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

// Validate 缺少必需配置时拒绝启动
func (c *Config) Validate() error {
	var missing []string
	if c.JWT.Secret == "" {
		missing = append(missing, "jwt.secret")
	}
	if c.Database.Host == "" {
		missing = append(missing, "database.host")
	}
	if c.Database.DBName == "" {
		missing = append(missing, "database.dbname")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(missing, ", "))
	}

	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Catalog.FallbackPolicy {
	case "fail_open", "fail_closed":
	default:
		return fmt.Errorf("unknown catalog.fallback_policy %q", c.Catalog.FallbackPolicy)
	}
	if c.Exam.PassPercentage < 0 || c.Exam.PassPercentage > 100 {
		return fmt.Errorf("exam.pass_percentage must be within 0-100, got %v", c.Exam.PassPercentage)
	}

	// 生产环境校验 JWT Secret 强度
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}
	return nil
}

// IsBootstrapAdmin 注册时自动授予管理员
func (c *Config) IsBootstrapAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.Auth.BootstrapAdmins {
		if e == email {
			return true
		}
	}
	return false
}
