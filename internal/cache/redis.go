package cache

import (
	"context"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type redisClient struct{ c *rdb.Client }

// NewRedis crea un Client sobre go-redis.
func NewRedis(addr string, db int) Client {
	return &redisClient{c: rdb.NewClient(&rdb.Options{Addr: addr, DB: db})}
}

// NewRedisFrom envuelve un cliente ya construido (comparte pool con rate).
func NewRedisFrom(c *rdb.Client) Client {
	return &redisClient{c: c}
}

func (r *redisClient) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.c.Get(ctx, key).Bytes()
	if err == rdb.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *redisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.c.Set(ctx, key, value, ttl).Err()
}

func (r *redisClient) Delete(ctx context.Context, key string) error {
	return r.c.Del(ctx, key).Err()
}

// TakeDel usa GETDEL: un solo round trip, atómico server-side.
// Nunca separar en GET + DEL pipelineados; redis los reconoce como
// comandos independientes y dos lectores pueden ganar.
func (r *redisClient) TakeDel(ctx context.Context, key string) ([]byte, error) {
	b, err := r.c.GetDel(ctx, key).Bytes()
	if err == rdb.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (r *redisClient) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }
func (r *redisClient) Close() error                   { return r.c.Close() }
