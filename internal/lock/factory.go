package lock

import (
	"github.com/redis/go-redis/v9"
	"github.com/yanun0323/errors"
)

// Config selects and parameterizes the guard backend.
type Config struct {
	Type   string      `yaml:"type"` // "memory" or "redis"
	Prefix string      `yaml:"prefix"`
	Redis  RedisConfig `yaml:"redis"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// New creates a guard from the configuration. An empty type means memory.
func New(cfg Config) (Guard, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemory(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		return NewRedis(client, cfg.Prefix), nil
	default:
		return nil, errors.Errorf("unsupported lock type: %s", cfg.Type)
	}
}
