// Package config loads the sessionstate service configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aadithya-v/sessionstate"
)

// Config is the on-disk service configuration.
type Config struct {
	LogLevel        string          `yaml:"log_level"`
	DuplicatePolicy string          `yaml:"duplicate_policy"`
	Store           StoreConfig     `yaml:"store"`
	Lock            LockConfig      `yaml:"lock"`
	Server          ServerConfig    `yaml:"server"`
	Publisher       PublisherConfig `yaml:"publisher"`
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	// Driver is one of sqlite, mysql, redis, memory.
	Driver     string      `yaml:"driver"`
	SQLitePath string      `yaml:"sqlite_path"`
	MySQLDSN   string      `yaml:"mysql_dsn"`
	Redis      RedisConfig `yaml:"redis"`
}

// RedisConfig holds connection settings for Redis.
type RedisConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// LockConfig selects the per-key locker.
type LockConfig struct {
	// Driver is one of local, redis.
	Driver string        `yaml:"driver"`
	TTL    time.Duration `yaml:"ttl"`

	// Redis defaults to the store's Redis settings when Addr is empty.
	Redis RedisConfig `yaml:"redis"`
}

// ServerConfig configures the HTTP ingest server.
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	Metrics         bool          `yaml:"metrics"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// PublisherConfig configures the publisher component.
type PublisherConfig struct {
	Name  string `yaml:"name"`
	Realm string `yaml:"realm"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		LogLevel:        "info",
		DuplicatePolicy: "report",
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "sessionstate.db",
			Redis: RedisConfig{
				Addr:      "localhost:6379",
				KeyPrefix: "sessionstate:",
			},
		},
		Lock: LockConfig{
			Driver: "local",
			TTL:    5 * time.Second,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			Metrics:         true,
			ShutdownTimeout: 10 * time.Second,
		},
		Publisher: PublisherConfig{
			Name:  "CustomSessionDataPublisher",
			Realm: "PRIMARY",
		},
	}
}

// Load reads path on top of Default. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks driver names and required settings.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return errors.New("config: store.sqlite_path is required for the sqlite driver")
		}
	case "mysql":
		if c.Store.MySQLDSN == "" {
			return errors.New("config: store.mysql_dsn is required for the mysql driver")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return errors.New("config: store.redis.addr is required for the redis driver")
		}
	case "memory":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}

	switch c.Lock.Driver {
	case "local":
	case "redis":
		if c.LockRedis().Addr == "" {
			return errors.New("config: lock.redis.addr is required for the redis lock")
		}
	default:
		return fmt.Errorf("config: unknown lock driver %q", c.Lock.Driver)
	}

	if _, err := sessionstate.ParseDuplicatePolicy(c.DuplicatePolicy); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// LockRedis returns the Redis settings for the lock, falling back to the store's.
func (c *Config) LockRedis() RedisConfig {
	if c.Lock.Redis.Addr != "" {
		return c.Lock.Redis
	}
	return c.Store.Redis
}
