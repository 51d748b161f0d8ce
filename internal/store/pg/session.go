package pg

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
)

// sessionRepo implementa repository.SessionRepository.
type sessionRepo struct {
	store *Store
}

const sessionColumns = `
	id, user_id, ip_address, user_agent, device_info,
	mfa_completed, created_at, expires_at, revoked_at
`

func scanSession(row interface{ Scan(...any) error }) (*repository.Session, error) {
	var s repository.Session
	err := row.Scan(
		&s.ID, &s.UserID, &s.IPAddress, &s.UserAgent, &s.DeviceInfo,
		&s.MFACompleted, &s.CreatedAt, &s.ExpiresAt, &s.RevokedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *sessionRepo) Create(ctx context.Context, input repository.CreateSessionInput) (*repository.Session, error) {
	query := `
		INSERT INTO sessions (user_id, ip_address, user_agent, device_info, mfa_completed, expires_at)
		VALUES ($1, $2::inet, $3, $4, $5, $6)
		RETURNING ` + sessionColumns

	var s *repository.Session
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		s, err = scanSession(r.store.pool.QueryRow(ctx, query,
			input.UserID,
			nullIfEmpty(input.IPAddress),
			nullIfEmpty(input.UserAgent),
			nullIfEmpty(input.DeviceInfo),
			input.MFACompleted,
			input.ExpiresAt,
		))
		if err != nil {
			return fmt.Errorf("create session: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *sessionRepo) Get(ctx context.Context, id string) (*repository.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	var s *repository.Session
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		s, err = scanSession(r.store.pool.QueryRow(ctx, query, id))
		if err != nil {
			return fmt.Errorf("get session: %w", mapNoRows(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CompleteMFA sólo transiciona false→true en filas vigentes; la sesión
// revocada o ya completada no cambia.
func (r *sessionRepo) CompleteMFA(ctx context.Context, id string) error {
	query := `
		UPDATE sessions SET mfa_completed = TRUE
		WHERE id = $1 AND mfa_completed = FALSE AND revoked_at IS NULL
	`
	return r.store.withTimeout(ctx, func(ctx context.Context) error {
		tag, err := r.store.pool.Exec(ctx, query, id)
		if err != nil {
			return fmt.Errorf("complete mfa: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *sessionRepo) ListActiveByUser(ctx context.Context, userID string) ([]repository.Session, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM sessions
		WHERE user_id = $1 AND revoked_at IS NULL AND expires_at > NOW()
		ORDER BY created_at DESC
	`

	var sessions []repository.Session
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		rows, err := r.store.pool.Query(ctx, query, userID)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			s, err := scanSession(rows)
			if err != nil {
				return fmt.Errorf("scan session: %w", err)
			}
			sessions = append(sessions, *s)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// Revoke marca revoked_at si la fila sigue viva. El UPDATE condicional hace
// la operación idempotente: el segundo logout afecta cero filas.
func (r *sessionRepo) Revoke(ctx context.Context, id string) (bool, error) {
	query := `UPDATE sessions SET revoked_at = NOW() WHERE id = $1 AND revoked_at IS NULL`

	var revoked bool
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		tag, err := r.store.pool.Exec(ctx, query, id)
		if err != nil {
			return fmt.Errorf("revoke session: %w", err)
		}
		revoked = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return revoked, nil
}

func (r *sessionRepo) RevokeAllByUser(ctx context.Context, userID string) ([]string, error) {
	query := `
		UPDATE sessions SET revoked_at = NOW()
		WHERE user_id = $1 AND revoked_at IS NULL
		RETURNING id
	`

	var ids []string
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		rows, err := r.store.pool.Query(ctx, query, userID)
		if err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("scan session id: %w", err)
			}
			ids = append(ids, id)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *sessionRepo) DeleteExpired(ctx context.Context) (int, error) {
	query := `DELETE FROM sessions WHERE expires_at <= NOW() OR revoked_at IS NOT NULL`

	var n int
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		tag, err := r.store.pool.Exec(ctx, query)
		if err != nil {
			return fmt.Errorf("delete expired sessions: %w", err)
		}
		n = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
