// Package cache records which webhook deliveries are already being handled.
package cache

import (
	"context"
	"fmt"
	"time"
)

// Provider claims keys for a limited time. A claimed key stays claimed until
// it expires or is released.
type Provider interface {
	// Claim reports whether the caller won the key. A false result means
	// another delivery holds it.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
}

func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Provider {
	case "memory", "":
		return NewMemoryProvider()
	case "redis":
		return NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
}

func WebhookKey(source, eventID string) string {
	return fmt.Sprintf("webhook:%s:%s", source, eventID)
}
