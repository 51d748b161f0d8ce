// Package rate implementa limitación de intentos sobre el cache
// (fixed window: INCR + EXPIRE).
package rate

import (
	"context"
	"time"

	"github.com/dropDatabas3/littlejohn/internal/cache"
)

// Result describe el estado del contador tras registrar un fallo.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	CurrentHits int64
}

// AttemptLimiter cuenta fallos consecutivos por key y bloquea al superar
// Max dentro de Window. El TTL se fija una sola vez, al primer fallo de la
// ventana: los fallos siguientes no extienden el bloqueo.
type AttemptLimiter struct {
	Cache  cache.Client
	Prefix string
	Max    int64
	Window time.Duration
}

func NewAttemptLimiter(c cache.Client, prefix string, max int, window time.Duration) *AttemptLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &AttemptLimiter{
		Cache:  c,
		Prefix: prefix,
		Max:    int64(max),
		Window: window,
	}
}

func (l *AttemptLimiter) key(k string) string {
	return l.Prefix + k
}

// Locked indica si la key ya agotó sus intentos en la ventana vigente.
func (l *AttemptLimiter) Locked(ctx context.Context, key string) (bool, error) {
	v, err := l.Cache.Get(ctx, l.key(key))
	if err != nil {
		if cache.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	var hits int64
	for _, c := range v {
		if c < '0' || c > '9' {
			return false, nil
		}
		hits = hits*10 + int64(c-'0')
	}
	return hits >= l.Max, nil
}

// Fail registra un intento fallido y devuelve el estado del contador.
// Allowed=false significa que este fallo agotó (o excedió) el cupo.
func (l *AttemptLimiter) Fail(ctx context.Context, key string) (Result, error) {
	k := l.key(key)
	hits, err := l.Cache.Incr(ctx, k)
	if err != nil {
		return Result{}, err
	}
	if hits == 1 {
		if err := l.Cache.Expire(ctx, k, l.Window); err != nil {
			return Result{}, err
		}
	}

	remaining := l.Max - hits
	if remaining < 0 {
		remaining = 0
	}
	res := Result{
		Allowed:     hits < l.Max,
		Remaining:   remaining,
		CurrentHits: hits,
	}
	if !res.Allowed {
		ttl, err := l.Cache.TTL(ctx, k)
		if err == nil && ttl > 0 {
			res.RetryAfter = ttl
		} else {
			res.RetryAfter = l.Window
		}
	}
	return res, nil
}

// Reset limpia el contador (ej: verificación exitosa).
func (l *AttemptLimiter) Reset(ctx context.Context, key string) error {
	return l.Cache.Delete(ctx, l.key(key))
}
