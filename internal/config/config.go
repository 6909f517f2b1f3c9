package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Feeds     FeedsConfig     `mapstructure:"feeds"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
}

type ServerConfig struct {
	Port     string `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	// ReadOnly refuses every mutating request; reads and the stream stay up.
	ReadOnly      bool `mapstructure:"read_only"`
	StreamBacklog int  `mapstructure:"stream_backlog"`
}

type DatabaseConfig struct {
	// Empty DSN disables the receipt archive.
	DSN                    string `mapstructure:"dsn"`
	ReceiptRetentionDays   int    `mapstructure:"receipt_retention_days"`
	CleanupIntervalMinutes int    `mapstructure:"cleanup_interval_minutes"`
}

type RedisConfig struct {
	// Empty Addr disables the receipt mirror and falls back to in-memory idempotency.
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	ReceiptListMax        int    `mapstructure:"receipt_list_max"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type RateLimitConfig struct {
	QPS   float64 `mapstructure:"qps"`
	Burst int     `mapstructure:"burst"`
}

type FeedsConfig struct {
	VerifySignatures bool `mapstructure:"verify_signatures"`
	// Signers maps a feed source name to the hex address allowed to sign for it.
	Signers map[string]string `mapstructure:"signers"`
}

type SandboxConfig struct {
	Replay bool `mapstructure:"replay"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")

	// e.g. GUARDGATE_REDIS_ADDR
	v.SetEnvPrefix("guardgate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.read_only", false)
	v.SetDefault("server.stream_backlog", 100)
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.receipt_retention_days", 90)
	v.SetDefault("database.cleanup_interval_minutes", 60)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.receipt_list_max", 1000)
	v.SetDefault("redis.idempotency_ttl_seconds", 86400)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("rate_limit.qps", 50.0)
	v.SetDefault("rate_limit.burst", 100)
	v.SetDefault("feeds.verify_signatures", false)
	v.SetDefault("sandbox.replay", false)
}
