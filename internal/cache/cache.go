// Package cache provee abstracciones para caching con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing)
//   - Redis (distribuido, para producción)
//
// El cache es siempre best-effort frente al store durable: acelera lecturas
// (sesiones), acota crecimiento por TTL (blacklist de access tokens) y da
// contadores atómicos (lockout MFA). Nunca es la única fuente de verdad.
package cache

import (
	"context"
	"time"
)

// NoTTL es el valor de TTL para una key sin expiración.
const NoTTL = time.Duration(-1)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL. Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// Incr incrementa atómicamente un contador y retorna el valor nuevo.
	// Si la key no existe, la crea en 1 (sin TTL). El increment-and-read
	// es una sola operación: dos fallos concurrentes nunca se pierden.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire fija el TTL de una key existente.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL retorna el tiempo de vida restante de una key.
	// Retorna ErrNotFound si no existe y NoTTL si no expira.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error

	// Stats retorna estadísticas del cache.
	Stats(ctx context.Context) (Stats, error)
}

// Stats contiene estadísticas del cache.
type Stats struct {
	Driver     string
	Keys       int64
	UsedMemory string
	Hits       int64
	Misses     int64
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Driver   string // "memory" | "redis"
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string // Prefijo para todas las keys

	// OpTimeout acota cada operación contra el backend. Excederlo es un
	// error de infraestructura, no un fallo de validación.
	OpTimeout time.Duration
}

// Errores de cache.
var (
	ErrNotFound = errNotFound{}
)

type errNotFound struct{}

func (e errNotFound) Error() string { return "cache: key not found" }

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool {
	_, ok := err.(errNotFound)
	return ok
}

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Driver {
	case "redis":
		return NewRedis(cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix), nil
	default:
		return NewMemory(cfg.Prefix), nil
	}
}
