package pg

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
)

// tokenRepo implementa repository.TokenRepository.
type tokenRepo struct {
	store *Store
}

const tokenColumns = `
	id, user_id, token_hash, family, created_at, expires_at, revoked_at, replaced_by_hash
`

func scanToken(row interface{ Scan(...any) error }) (*repository.RefreshToken, error) {
	var t repository.RefreshToken
	err := row.Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.Family,
		&t.CreatedAt, &t.ExpiresAt, &t.RevokedAt, &t.ReplacedByHash,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepo) Create(ctx context.Context, input repository.CreateRefreshTokenInput) (string, error) {
	query := `
		INSERT INTO refresh_tokens (user_id, token_hash, family, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	var id string
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		if err := r.store.pool.QueryRow(ctx, query,
			input.UserID, input.TokenHash, input.Family, input.ExpiresAt,
		).Scan(&id); err != nil {
			return fmt.Errorf("create refresh token: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *tokenRepo) GetByHash(ctx context.Context, tokenHash string) (*repository.RefreshToken, error) {
	query := `SELECT ` + tokenColumns + ` FROM refresh_tokens WHERE token_hash = $1`

	var t *repository.RefreshToken
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		t, err = scanToken(r.store.pool.QueryRow(ctx, query, tokenHash))
		if err != nil {
			return fmt.Errorf("get refresh token: %w", mapNoRows(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

// MarkRotated es el punto de linearización de la rotación: el WHERE exige
// que la fila siga sin revocar, así dos rotaciones concurrentes del mismo
// token resuelven en exactamente un ganador.
func (r *tokenRepo) MarkRotated(ctx context.Context, id string, replacedByHash string) (bool, error) {
	query := `
		UPDATE refresh_tokens SET revoked_at = NOW(), replaced_by_hash = $2
		WHERE id = $1 AND revoked_at IS NULL
	`

	var won bool
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		tag, err := r.store.pool.Exec(ctx, query, id, replacedByHash)
		if err != nil {
			return fmt.Errorf("mark rotated: %w", err)
		}
		won = tag.RowsAffected() == 1
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

func (r *tokenRepo) RevokeFamily(ctx context.Context, family string) (int, error) {
	query := `UPDATE refresh_tokens SET revoked_at = NOW() WHERE family = $1 AND revoked_at IS NULL`

	var n int
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		tag, err := r.store.pool.Exec(ctx, query, family)
		if err != nil {
			return fmt.Errorf("revoke family: %w", err)
		}
		n = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *tokenRepo) RevokeAllByUser(ctx context.Context, userID string) (int, error) {
	query := `UPDATE refresh_tokens SET revoked_at = NOW() WHERE user_id = $1 AND revoked_at IS NULL`

	var n int
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		tag, err := r.store.pool.Exec(ctx, query, userID)
		if err != nil {
			return fmt.Errorf("revoke user tokens: %w", err)
		}
		n = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (r *tokenRepo) DeleteExpired(ctx context.Context) (int, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at <= NOW()`

	var n int
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		tag, err := r.store.pool.Exec(ctx, query)
		if err != nil {
			return fmt.Errorf("delete expired tokens: %w", err)
		}
		n = int(tag.RowsAffected())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
