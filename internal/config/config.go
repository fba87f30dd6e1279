package config

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig  `json:"server"`
	Data    DataConfig    `json:"data"`
	Cache   CacheConfig   `json:"cache"`
	Refresh RefreshConfig `json:"refresh"`
	Redis   RedisConfig   `json:"redis"`

	// Secrets come from the environment, never the config file
	PostgresDSN  string `json:"-"`
	UpdateSecret string `json:"-"`
}

type ServerConfig struct {
	Port        string `json:"port"`
	Environment string `json:"environment"`
}

type DataConfig struct {
	BlocklistFile string `json:"blocklist_file"`
	SourcesFile   string `json:"sources_file"`
}

type CacheConfig struct {
	TTLSeconds int `json:"ttl_seconds"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type RefreshConfig struct {
	// Cron spec for periodic refresh; empty disables the scheduler
	Schedule string `json:"schedule"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

func (r RedisConfig) GetRedisAddr() string {
	return r.Host + ":" + r.Port
}

func Load(path string) (*Config, error) {
	config := &Config{
		Server: ServerConfig{Port: "8000", Environment: "development"},
		Data: DataConfig{
			BlocklistFile: "block_ips.json",
			SourcesFile:   "ai_urls.json",
		},
		Cache: CacheConfig{TTLSeconds: 3600},
		Redis: RedisConfig{Host: "localhost", Port: "6379"},
	}

	file, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// No config file: defaults + env
	} else if err := json.Unmarshal(file, config); err != nil {
		return nil, err
	}

	applyEnv(config)
	return config, nil
}

func applyEnv(config *Config) {
	if v := os.Getenv("PORT"); v != "" {
		config.Server.Port = v
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		config.PostgresDSN = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		config.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		config.Redis.Port = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		config.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			config.Redis.DB = db
		}
	}
	if v := os.Getenv("UPDATE_SECRET"); v != "" {
		config.UpdateSecret = v
	}
}
