// Package pg implementa los repositorios del dominio sobre PostgreSQL
// usando pgx/v5 con pool de conexiones.
package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
)

// DefaultOpTimeout acota cada operación contra la base. Una operación que
// excede el timeout es infraestructura caída, nunca un fallo de validación.
const DefaultOpTimeout = 5 * time.Second

// Store agrupa el pool y fabrica los repositorios.
type Store struct {
	pool      *pgxpool.Pool
	opTimeout time.Duration
}

// Options ajusta el pool.
type Options struct {
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	OpTimeout       time.Duration
}

// New abre el pool y verifica conectividad con un ping.
func New(ctx context.Context, dsn string, opts Options) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: parse dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		pcfg.MinConns = opts.MinConns
	}
	if opts.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = opts.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pg: new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pg: ping: %w", err)
	}

	opTimeout := opts.OpTimeout
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}

	return &Store{pool: pool, opTimeout: opTimeout}, nil
}

// Pool expone el pool interno (migraciones, healthchecks).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

// Close cierra el pool subyacente (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Identities fabrica el repositorio de identidades.
func (s *Store) Identities() repository.IdentityRepository {
	return &identityRepo{store: s}
}

// Sessions fabrica el repositorio de sesiones.
func (s *Store) Sessions() repository.SessionRepository {
	return &sessionRepo{store: s}
}

// Tokens fabrica el repositorio de refresh tokens.
func (s *Store) Tokens() repository.TokenRepository {
	return &tokenRepo{store: s}
}

// Audit fabrica el repositorio de auditoría.
func (s *Store) Audit() repository.AuditRepository {
	return &auditRepo{store: s}
}

// withTimeout acota la operación y traduce el vencimiento del deadline a
// repository.ErrUnavailable.
func (s *Store) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	opCtx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	err := fn(opCtx)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", repository.ErrUnavailable, err)
	}
	return err
}

// mapNoRows traduce pgx.ErrNoRows a repository.ErrNotFound.
func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	return err
}
