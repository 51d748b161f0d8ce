package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
)

// identityRepo implementa repository.IdentityRepository.
type identityRepo struct {
	store *Store
}

const identityColumns = `
	id, external_id, email, role, is_active,
	display_name, first_name, last_name, job_title, department, avatar_url,
	mfa_enabled, mfa_method, mfa_secret_encrypted, mfa_recovery_code_hashes, mfa_verified_at,
	last_login_at, last_login_ip,
	created_at, updated_at
`

func scanIdentity(row interface{ Scan(...any) error }) (*repository.Identity, error) {
	var u repository.Identity
	err := row.Scan(
		&u.ID, &u.ExternalID, &u.Email, &u.Role, &u.IsActive,
		&u.DisplayName, &u.FirstName, &u.LastName, &u.JobTitle, &u.Department, &u.AvatarURL,
		&u.MFAEnabled, &u.MFAMethod, &u.MFASecretEncrypted, &u.MFARecoveryCodeHashes, &u.MFAVerifiedAt,
		&u.LastLoginAt, &u.LastLoginIP,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *identityRepo) GetByID(ctx context.Context, id string) (*repository.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM users WHERE id = $1`

	var u *repository.Identity
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		u, err = scanIdentity(r.store.pool.QueryRow(ctx, query, id))
		if err != nil {
			return fmt.Errorf("get identity: %w", mapNoRows(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Upsert crea o actualiza la identidad local a partir del perfil externo.
// El conflicto es por external_id: el mismo usuario upstream siempre mapea
// a la misma fila local. El estado MFA local nunca se toca desde acá.
func (r *identityRepo) Upsert(ctx context.Context, input repository.UpsertIdentityInput) (*repository.Identity, error) {
	query := `
		INSERT INTO users (
			external_id, email, role, is_active,
			display_name, first_name, last_name, job_title, department, avatar_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (external_id) DO UPDATE SET
			email        = EXCLUDED.email,
			role         = EXCLUDED.role,
			is_active    = EXCLUDED.is_active,
			display_name = COALESCE(NULLIF(EXCLUDED.display_name, ''), users.display_name),
			first_name   = COALESCE(NULLIF(EXCLUDED.first_name, ''), users.first_name),
			last_name    = COALESCE(NULLIF(EXCLUDED.last_name, ''), users.last_name),
			job_title    = COALESCE(NULLIF(EXCLUDED.job_title, ''), users.job_title),
			department   = COALESCE(NULLIF(EXCLUDED.department, ''), users.department),
			avatar_url   = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), users.avatar_url),
			updated_at   = NOW()
		RETURNING ` + identityColumns

	var u *repository.Identity
	err := r.store.withTimeout(ctx, func(ctx context.Context) error {
		var err error
		u, err = scanIdentity(r.store.pool.QueryRow(ctx, query,
			input.ExternalID, input.Email, input.Role, input.IsActive,
			nullIfEmpty(input.DisplayName), nullIfEmpty(input.FirstName), nullIfEmpty(input.LastName),
			nullIfEmpty(input.JobTitle), nullIfEmpty(input.Department), nullIfEmpty(input.AvatarURL),
		))
		if err != nil {
			return fmt.Errorf("upsert identity: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *identityRepo) UpdateLastLogin(ctx context.Context, id string, at time.Time, ip string) error {
	query := `UPDATE users SET last_login_at = $2, last_login_ip = $3, updated_at = NOW() WHERE id = $1`
	return r.store.withTimeout(ctx, func(ctx context.Context) error {
		if _, err := r.store.pool.Exec(ctx, query, id, at, nullIfEmpty(ip)); err != nil {
			return fmt.Errorf("update last login: %w", err)
		}
		return nil
	})
}

// SetMFASetup guarda el material de enrolamiento sin habilitar MFA todavía:
// el usuario debe verificar un código antes de que EnableMFA lo active.
func (r *identityRepo) SetMFASetup(ctx context.Context, id string, input repository.MFASetupInput) error {
	query := `
		UPDATE users SET
			mfa_method = $2,
			mfa_secret_encrypted = $3,
			mfa_recovery_code_hashes = $4,
			mfa_enabled = FALSE,
			mfa_verified_at = NULL,
			updated_at = NOW()
		WHERE id = $1
	`
	return r.store.withTimeout(ctx, func(ctx context.Context) error {
		tag, err := r.store.pool.Exec(ctx, query, id, input.Method, input.SecretEncrypted, input.RecoveryCodeHashes)
		if err != nil {
			return fmt.Errorf("set mfa setup: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *identityRepo) EnableMFA(ctx context.Context, id string, at time.Time) error {
	query := `
		UPDATE users SET mfa_enabled = TRUE, mfa_verified_at = $2, updated_at = NOW()
		WHERE id = $1 AND mfa_secret_encrypted IS NOT NULL
	`
	return r.store.withTimeout(ctx, func(ctx context.Context) error {
		tag, err := r.store.pool.Exec(ctx, query, id, at)
		if err != nil {
			return fmt.Errorf("enable mfa: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *identityRepo) SetRecoveryCodeHashes(ctx context.Context, id string, hashes []string) error {
	query := `UPDATE users SET mfa_recovery_code_hashes = $2, updated_at = NOW() WHERE id = $1`
	return r.store.withTimeout(ctx, func(ctx context.Context) error {
		tag, err := r.store.pool.Exec(ctx, query, id, hashes)
		if err != nil {
			return fmt.Errorf("set recovery hashes: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

func (r *identityRepo) DisableMFA(ctx context.Context, id string) error {
	query := `
		UPDATE users SET
			mfa_enabled = FALSE,
			mfa_method = NULL,
			mfa_secret_encrypted = NULL,
			mfa_recovery_code_hashes = NULL,
			mfa_verified_at = NULL,
			updated_at = NOW()
		WHERE id = $1
	`
	return r.store.withTimeout(ctx, func(ctx context.Context) error {
		tag, err := r.store.pool.Exec(ctx, query, id)
		if err != nil {
			return fmt.Errorf("disable mfa: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}
		return nil
	})
}

// nullIfEmpty convierte "" en NULL para columnas opcionales.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
