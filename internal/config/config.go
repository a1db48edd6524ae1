package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mealdash-next/internal/logger"

	"github.com/spf13/viper"
)

// Config 应用配置结构
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Log          LogConfig          `mapstructure:"log"`
	Database     DatabaseConfig     `mapstructure:"database"`
	JWT          JWTConfig          `mapstructure:"jwt"`
	Redis        RedisConfig        `mapstructure:"redis"`
	Queue        QueueConfig        `mapstructure:"queue"`
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimit    RateLimitConfig    `mapstructure:"rate_limit"`
	Restaurant   RestaurantConfig   `mapstructure:"restaurant"`
	Payment      PaymentConfig      `mapstructure:"payment"`
	Notification NotificationConfig `mapstructure:"notification"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Printer      PrinterConfig      `mapstructure:"printer"`
	Worker       WorkerConfig       `mapstructure:"worker"`
	Telemetry    TelemetryConfig    `mapstructure:"telemetry"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host                string `mapstructure:"host"`
	Port                string `mapstructure:"port"`
	Mode                string `mapstructure:"mode"` // debug / release
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

// ReadTimeout 读取请求超时（含请求头）
func (c ServerConfig) ReadTimeout() time.Duration {
	return secondsOrDefault(c.ReadTimeoutSeconds, 15)
}

// WriteTimeout 响应写出超时，报表导出需要留足时间
func (c ServerConfig) WriteTimeout() time.Duration {
	return secondsOrDefault(c.WriteTimeoutSeconds, 60)
}

// LogConfig 日志配置
type LogConfig struct {
	Dir        string `mapstructure:"dir"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// ToLoggerOptions 转换为 logger 配置
func (c LogConfig) ToLoggerOptions() logger.Options {
	return logger.Options{
		Dir:        c.Dir,
		Filename:   c.Filename,
		MaxSizeMB:  c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		MaxAgeDays: c.MaxAgeDays,
		Compress:   c.Compress,
	}
}

// DatabasePoolConfig 数据库连接池配置
type DatabasePoolConfig struct {
	MaxOpenConns           int `mapstructure:"max_open_conns"`
	MaxIdleConns           int `mapstructure:"max_idle_conns"`
	ConnMaxLifetimeSeconds int `mapstructure:"conn_max_lifetime_seconds"`
	ConnMaxIdleTimeSeconds int `mapstructure:"conn_max_idle_time_seconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver string             `mapstructure:"driver"` // 数据库驱动（sqlite/postgres）
	DSN    string             `mapstructure:"dsn"`    // 数据库连接串
	Pool   DatabasePoolConfig `mapstructure:"pool"`
}

// JWTConfig 后台 JWT 配置
type JWTConfig struct {
	SecretKey   string `mapstructure:"secret"`
	ExpireHours int    `mapstructure:"expire_hours"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// QueueConfig 异步队列配置
type QueueConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	Password    string         `mapstructure:"password"`
	DB          int            `mapstructure:"db"`
	Concurrency int            `mapstructure:"concurrency"`
	Queues      map[string]int `mapstructure:"queues"`
}

// CORSConfig 跨域配置
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	MaxAge           int      `mapstructure:"max_age"`
}

// RateLimitConfig 公共接口限流配置
type RateLimitConfig struct {
	WindowSeconds int `mapstructure:"window_seconds"`
	MaxRequests   int `mapstructure:"max_requests"`
	BlockSeconds  int `mapstructure:"block_seconds"`
}

// RestaurantConfig 门店基础配置
type RestaurantConfig struct {
	Name        string  `mapstructure:"name"`
	Timezone    string  `mapstructure:"timezone"`     // IANA 时区，营业时间按此换算
	CountryCode string  `mapstructure:"country_code"` // 手机号默认国家码（ISO 3166-1）
	OriginLat   float64 `mapstructure:"origin_lat"`   // 门店坐标（骑手距离计算原点）
	OriginLng   float64 `mapstructure:"origin_lng"`
	TaxPercent  float64 `mapstructure:"tax_percent"`
	DeliveryFee string  `mapstructure:"delivery_fee"`
}

// PaymentConfig 支付核验配置
type PaymentConfig struct {
	VerifyURL              string `mapstructure:"verify_url"`
	VerifyAPIKey           string `mapstructure:"verify_api_key"`
	VerifyTimeoutSeconds   int    `mapstructure:"verify_timeout_seconds"`
	WebhookSecret          string `mapstructure:"webhook_secret"`
	WebhookSignatureHeader string `mapstructure:"webhook_signature_header"`
}

// VerifyTimeout 支付核验超时
func (c PaymentConfig) VerifyTimeout() time.Duration {
	return secondsOrDefault(c.VerifyTimeoutSeconds, 10)
}

// NotificationConfig WhatsApp 通知配置
type NotificationConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	WhatsAppURL    string   `mapstructure:"whatsapp_url"`
	WhatsAppToken  string   `mapstructure:"whatsapp_token"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds"`
	AdminPhones    []string `mapstructure:"admin_phones"`
}

// Timeout 通知发送超时
func (c NotificationConfig) Timeout() time.Duration {
	return secondsOrDefault(c.TimeoutSeconds, 8)
}

// TelegramConfig 管理员 Telegram 告警配置
type TelegramConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	BotToken     string  `mapstructure:"bot_token"`
	AdminChatIDs []int64 `mapstructure:"admin_chat_ids"`
}

// PrinterConfig 小票打印机配置
type PrinterConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	Endpoint       string `mapstructure:"endpoint"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
}

// Timeout 打印请求超时
func (c PrinterConfig) Timeout() time.Duration {
	return secondsOrDefault(c.TimeoutSeconds, 5)
}

// WorkerConfig 后台巡检配置
type WorkerConfig struct {
	PrintSweepSeconds      int `mapstructure:"print_sweep_seconds"`
	CapacitySweepSeconds   int `mapstructure:"capacity_sweep_seconds"`
	PrintRetryAfterSeconds int `mapstructure:"print_retry_after_seconds"`
}

// TelemetryConfig 链路追踪配置
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

func secondsOrDefault(seconds int, fallback int) time.Duration {
	if seconds <= 0 {
		seconds = fallback
	}
	return time.Duration(seconds) * time.Second
}

// Load 从 config.yml 加载配置
func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./")
	viper.AddConfigPath("../")
	viper.AddConfigPath("./etc")

	setDefaults(viper.GetViper())

	// 环境变量支持（例如 payment.webhook_secret -> PAYMENT_WEBHOOK_SECRET）
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		logger.Warnw("config_file_read_failed",
			"error", err,
			"fallback", "env_or_defaults",
		)
	} else {
		logger.Infow("config_file_loaded", "file", viper.ConfigFileUsed())
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		logger.Errorw("config_unmarshal_failed", "error", err)
		panic(fmt.Errorf("配置解析失败: %w", err))
	}
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 60)
	v.SetDefault("log.dir", "")
	v.SetDefault("log.filename", "mealdash.log")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)
	v.SetDefault("log.compress", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "./db/mealdash.db")
	v.SetDefault("database.pool.max_open_conns", 1)
	v.SetDefault("database.pool.max_idle_conns", 1)
	v.SetDefault("jwt.secret", "change-me-in-production")
	v.SetDefault("jwt.expire_hours", 12)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "md")
	v.SetDefault("queue.enabled", true)
	v.SetDefault("queue.host", "127.0.0.1")
	v.SetDefault("queue.port", 6379)
	v.SetDefault("queue.db", 1)
	v.SetDefault("queue.concurrency", 10)
	v.SetDefault("queue.queues", map[string]int{
		"critical": 6,
		"default":  3,
	})
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{
		"Content-Type",
		"Authorization",
		"X-Requested-With",
		"X-Request-ID",
	})
	v.SetDefault("cors.allow_credentials", true)
	v.SetDefault("cors.max_age", 600)
	v.SetDefault("rate_limit.window_seconds", 60)
	v.SetDefault("rate_limit.max_requests", 30)
	v.SetDefault("rate_limit.block_seconds", 120)
	v.SetDefault("restaurant.name", "MealDash Kitchen")
	v.SetDefault("restaurant.timezone", "Africa/Addis_Ababa")
	v.SetDefault("restaurant.country_code", "ET")
	v.SetDefault("restaurant.origin_lat", 9.0108)
	v.SetDefault("restaurant.origin_lng", 38.7613)
	v.SetDefault("restaurant.tax_percent", 0)
	v.SetDefault("restaurant.delivery_fee", "0")
	v.SetDefault("payment.verify_timeout_seconds", 10)
	v.SetDefault("payment.webhook_signature_header", "X-Signature")
	v.SetDefault("notification.enabled", false)
	v.SetDefault("notification.timeout_seconds", 8)
	v.SetDefault("telegram.enabled", false)
	v.SetDefault("printer.enabled", false)
	v.SetDefault("printer.timeout_seconds", 5)
	v.SetDefault("printer.max_attempts", 5)
	v.SetDefault("worker.print_sweep_seconds", 60)
	v.SetDefault("worker.capacity_sweep_seconds", 120)
	v.SetDefault("worker.print_retry_after_seconds", 60)
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "mealdash")
}
