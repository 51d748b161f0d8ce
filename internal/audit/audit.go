// Package audit registra eventos de autenticación en el store durable.
package audit

import (
	"context"

	"github.com/dropDatabas3/littlejohn/internal/domain/repository"
	"github.com/dropDatabas3/littlejohn/internal/observability/logger"
)

// Acciones registradas.
const (
	ActionLogin       = "login"
	ActionLoginFailed = "login_failed"
	ActionMfaComplete = "mfa_complete"
	ActionMfaFailed   = "mfa_failed"
	ActionMfaLockout  = "mfa_lockout"
	ActionLogout      = "logout"
	ActionTokenReuse  = "token_reuse_detected"
)

// Recorder persiste eventos de auditoría best-effort: un insert fallido se
// loguea y se descarta, nunca aborta el flujo primario.
type Recorder struct {
	Repo repository.AuditRepository
}

func NewRecorder(repo repository.AuditRepository) *Recorder {
	return &Recorder{Repo: repo}
}

// Record inserta el evento. Los errores se absorben con un log warn.
func (r *Recorder) Record(ctx context.Context, entry repository.AuditEntry) {
	if r == nil || r.Repo == nil {
		return
	}
	if err := r.Repo.Insert(ctx, entry); err != nil {
		logger.From(ctx).Warn("audit insert failed",
			logger.Component("audit"),
			logger.String("action", entry.Action),
			logger.UserID(entry.UserID),
			logger.Err(err),
		)
	}
}
