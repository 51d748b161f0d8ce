package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache.
// Útil para desarrollo y testing; mismo contrato que el backend Redis.
type memoryClient struct {
	prefix string
	c      *gocache.Cache

	// mu serializa las secuencias read-modify-write (Incr, Expire) que
	// go-cache no ofrece de forma atómica con TTL arbitrario.
	mu     sync.Mutex
	hits   int64
	misses int64
}

// NewMemory crea un cliente de cache en memoria.
func NewMemory(prefix string) *memoryClient {
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (c *memoryClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.c.Get(c.key(key))
	if !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return "", ErrNotFound
	}
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	if s, ok := v.(string); ok {
		return s, nil
	}
	return "", ErrNotFound
}

func (c *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.c.Set(c.key(key), value, ttl)
	return nil
}

func (c *memoryClient) Delete(ctx context.Context, key string) error {
	c.c.Delete(c.key(key))
	return nil
}

func (c *memoryClient) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.c.Get(c.key(key))
	return ok, nil
}

func (c *memoryClient) Incr(ctx context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Los contadores se guardan como string, igual que en Redis, para que
	// Get los pueda leer.
	k := c.key(key)
	v, exp, ok := c.c.GetWithExpiration(k)
	if !ok {
		c.c.Set(k, "1", gocache.NoExpiration)
		return 1, nil
	}
	var n int64
	if s, ok := v.(string); ok {
		n, _ = strconv.ParseInt(s, 10, 64)
	}
	n++
	ttl := time.Duration(gocache.NoExpiration)
	if !exp.IsZero() {
		ttl = time.Until(exp)
	}
	c.c.Set(k, strconv.FormatInt(n, 10), ttl)
	return n, nil
}

func (c *memoryClient) Expire(ctx context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := c.key(key)
	v, ok := c.c.Get(k)
	if !ok {
		return ErrNotFound
	}
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.c.Set(k, v, ttl)
	return nil
}

func (c *memoryClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	v, exp, ok := c.c.GetWithExpiration(c.key(key))
	_ = v
	if !ok {
		return 0, ErrNotFound
	}
	if exp.IsZero() {
		return NoTTL, nil
	}
	return time.Until(exp), nil
}

func (c *memoryClient) Ping(ctx context.Context) error {
	return nil
}

func (c *memoryClient) Close() error {
	c.c.Flush()
	return nil
}

func (c *memoryClient) Stats(ctx context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Driver: "memory",
		Keys:   int64(c.c.ItemCount()),
		Hits:   c.hits,
		Misses: c.misses,
	}, nil
}
