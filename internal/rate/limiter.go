// Package rate implementa rate limiting de ventana fija sobre Redis.
package rate

import (
	"context"
	"fmt"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Result describe el estado del contador tras consumir un intento.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	// Allow consume un intento para la key dentro de la ventana actual.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
}

// RedisLimiter cuenta con INCR y fija el TTL de la ventana en el primer
// hit. Si Redis no responde dejamos pasar: el limiter protege contra
// abuso, no puede ser un single point of failure del login.
type RedisLimiter struct {
	client *rdb.Client
}

func NewRedisLimiter(client *rdb.Client) *RedisLimiter {
	return &RedisLimiter{client: client}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	rkey := "rate:" + key
	n, err := l.client.Incr(ctx, rkey).Result()
	if err != nil {
		return Result{Allowed: true, Remaining: limit}, fmt.Errorf("rate: incr: %w", err)
	}
	if n == 1 {
		l.client.Expire(ctx, rkey, window)
	}
	if n > int64(limit) {
		ttl, _ := l.client.TTL(ctx, rkey).Result()
		if ttl < 0 {
			ttl = window
		}
		return Result{Allowed: false, Remaining: 0, RetryAfter: ttl}, nil
	}
	return Result{Allowed: true, Remaining: limit - int(n)}, nil
}

// Noop deja pasar todo. Se usa cuando el limiting está apagado o en
// modo memoria (single instance, dev).
type Noop struct{}

func (Noop) Allow(_ context.Context, _ string, limit int, _ time.Duration) (Result, error) {
	return Result{Allowed: true, Remaining: limit}, nil
}
