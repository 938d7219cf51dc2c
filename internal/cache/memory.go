package cache

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type memClient struct {
	mu sync.Mutex
	c  *gocache.Cache
}

// NewMemory crea un Client in-process. go-cache maneja expiración; el
// mutex existe solo para que TakeDel sea una operación única.
func NewMemory(defaultTTL time.Duration) Client {
	return &memClient{c: gocache.New(defaultTTL, time.Minute)}
}

func (m *memClient) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	b, _ := v.([]byte)
	return b, nil
}

func (m *memClient) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(key, value, ttl)
	return nil
}

func (m *memClient) Delete(_ context.Context, key string) error {
	m.c.Delete(key)
	return nil
}

func (m *memClient) TakeDel(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.c.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	m.c.Delete(key)
	b, _ := v.([]byte)
	return b, nil
}

func (m *memClient) Ping(context.Context) error { return nil }
func (m *memClient) Close() error               { return nil }
