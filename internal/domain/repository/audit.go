package repository

import (
	"context"
	"time"
)

// AuditEntry es un evento de auditoría durable (login, logout, mfa).
type AuditEntry struct {
	ID        string
	UserID    string
	Action    string
	Resource  string
	IPAddress *string
	UserAgent *string
	Success   bool
	CreatedAt time.Time
}

// AuditRepository persiste eventos de auditoría. Los callers lo usan
// best-effort: un Insert fallido jamás debe abortar el flujo primario.
type AuditRepository interface {
	Insert(ctx context.Context, entry AuditEntry) error
}
