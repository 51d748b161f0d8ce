// Package repository define interfaces de acceso a datos.
package repository

import (
	"context"
	"time"
)

// Session representa una sesión de usuario persistida.
// La validez es monótona decreciente: una sesión nunca se des-expira ni
// se des-revoca.
type Session struct {
	ID     string
	UserID string

	IPAddress  *string
	UserAgent  *string
	DeviceInfo *string

	// MFACompleted pasa exactamente una vez de false a true.
	MFACompleted bool

	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Valid indica si la sesión sigue usable en el instante dado.
func (s *Session) Valid(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}

// CreateSessionInput contiene los datos para crear una nueva sesión.
type CreateSessionInput struct {
	UserID       string
	IPAddress    string
	UserAgent    string
	DeviceInfo   string
	MFACompleted bool
	ExpiresAt    time.Time
}

// SessionRepository define operaciones sobre sesiones.
type SessionRepository interface {
	// Create inserta una sesión nueva y retorna la fila creada.
	Create(ctx context.Context, input CreateSessionInput) (*Session, error)

	// Get obtiene una sesión por ID. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, id string) (*Session, error)

	// CompleteMFA marca mfa_completed=true en la fila durable.
	CompleteMFA(ctx context.Context, id string) error

	// ListActiveByUser retorna las sesiones no revocadas y no expiradas
	// del usuario, más reciente primero.
	ListActiveByUser(ctx context.Context, userID string) ([]Session, error)

	// Revoke marca revoked_at si la fila sigue sin revocar.
	// Retorna true si esta llamada efectivamente revocó la fila.
	Revoke(ctx context.Context, id string) (bool, error)

	// RevokeAllByUser revoca todas las sesiones activas del usuario con un
	// único UPDATE condicional. Retorna los IDs revocados (para invalidar
	// las entradas de cache una por una).
	RevokeAllByUser(ctx context.Context, userID string) ([]string, error)

	// DeleteExpired elimina filas expiradas o revocadas.
	// Retorna la cantidad eliminada.
	DeleteExpired(ctx context.Context) (int, error)
}
