/*
Package config loads server configuration.

PRECEDENCE (highest first):
  1. Environment variables, prefixed PAYOUT_ (PAYOUT_SERVER_PORT=9090)
  2. .env in the working directory, if present
  3. config.yaml (./config or .), or the file given with -config
  4. Defaults below
*/
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Log     LogConfig     `mapstructure:"log"`
	Refresh RefreshConfig `mapstructure:"refresh"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DBConfig struct {
	Path string `mapstructure:"path"` // ":memory:" for an in-memory database
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

type KafkaConfig struct {
	Enabled bool     `mapstructure:"enabled"`
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RefreshConfig drives the background reconciler. It refreshes on behalf
// of one restaurant/user pair.
type RefreshConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	RestaurantID string        `mapstructure:"restaurant_id"`
	UserID       string        `mapstructure:"user_id"`
}

// Load reads configuration from path (or the default search locations),
// the environment and .env.
func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("db.path", "payout.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "30s")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic", "payout.approved")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("refresh.enabled", false)
	v.SetDefault("refresh.interval", "5m")
	v.SetDefault("refresh.restaurant_id", "")
	v.SetDefault("refresh.user_id", "")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PAYOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be within 1-65535, got %d", c.Server.Port)
	}
	if c.DB.Path == "" {
		return errors.New("config: db.path is required")
	}
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return errors.New("config: redis.addr is required when redis is enabled")
		}
		if c.Redis.LockTTL < time.Second {
			return fmt.Errorf("config: redis.lock_ttl must be at least 1s, got %s", c.Redis.LockTTL)
		}
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return errors.New("config: kafka.brokers is required when kafka is enabled")
	}
	if c.Refresh.Enabled {
		if c.Refresh.Interval < time.Second {
			return fmt.Errorf("config: refresh.interval must be at least 1s, got %s", c.Refresh.Interval)
		}
		if c.Refresh.RestaurantID == "" || c.Refresh.UserID == "" {
			return errors.New("config: refresh.restaurant_id and refresh.user_id are required when refresh is enabled")
		}
	}
	return nil
}
