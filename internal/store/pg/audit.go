package pg

import (
	"context"
	"fmt"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
)

// auditRepo implementa repository.AuditRepository.
type auditRepo struct {
	store *Store
}

func (r *auditRepo) Insert(ctx context.Context, entry repository.AuditEntry) error {
	query := `
		INSERT INTO audit_log (user_id, action, resource, ip_address, user_agent, success)
		VALUES ($1, $2, $3, $4::inet, $5, $6)
	`
	return r.store.withTimeout(ctx, func(ctx context.Context) error {
		if _, err := r.store.pool.Exec(ctx, query,
			nullIfEmpty(entry.UserID), entry.Action, entry.Resource,
			entry.IPAddress, entry.UserAgent, entry.Success,
		); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
		return nil
	})
}
