package repository

import (
	"context"
	"time"
)

// TokenState es el estado explícito de un refresh token. Modelarlo como
// variante (y no como dos nullables sueltos) hace exhaustivo el branch de
// detección de reuso.
type TokenState int

const (
	// TokenStateActive: vigente, nunca rotado ni revocado.
	TokenStateActive TokenState = iota
	// TokenStateRotated: consumido por una rotación; presentarlo de nuevo
	// es evidencia de robo.
	TokenStateRotated
	// TokenStateRevoked: revocado sin descendencia (logout, breach).
	TokenStateRevoked
)

func (s TokenState) String() string {
	switch s {
	case TokenStateActive:
		return "active"
	case TokenStateRotated:
		return "rotated"
	case TokenStateRevoked:
		return "revoked"
	default:
		return "unknown"
	}
}

// RefreshToken representa un refresh token persistido. El valor crudo se
// entrega una sola vez; acá solo vive su hash SHA-256.
type RefreshToken struct {
	ID        string
	UserID    string
	TokenHash string

	// Family es el linaje compartido por un token y todos sus descendientes
	// rotados. Ante reuso se revoca el linaje completo.
	Family string

	CreatedAt time.Time
	ExpiresAt time.Time

	RevokedAt      *time.Time
	ReplacedByHash *string
}

// State deriva la variante explícita desde las columnas persistidas.
func (t *RefreshToken) State() TokenState {
	if t.RevokedAt == nil {
		return TokenStateActive
	}
	if t.ReplacedByHash != nil {
		return TokenStateRotated
	}
	return TokenStateRevoked
}

// Expired indica si el token superó su expiración natural.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// CreateRefreshTokenInput contiene los datos para persistir un refresh token.
type CreateRefreshTokenInput struct {
	UserID    string
	TokenHash string
	Family    string
	ExpiresAt time.Time
}

// TokenRepository define operaciones sobre refresh tokens.
type TokenRepository interface {
	// Create inserta un token nuevo y retorna su ID.
	Create(ctx context.Context, input CreateRefreshTokenInput) (string, error)

	// GetByHash busca un token por su hash. Retorna ErrNotFound si no existe.
	GetByHash(ctx context.Context, tokenHash string) (*RefreshToken, error)

	// MarkRotated revoca el token y registra el hash del hijo, solo si la
	// fila sigue sin revocar (UPDATE condicional). Retorna true si esta
	// llamada ganó la rotación: es el punto de linearización que garantiza
	// a lo sumo un hijo por token bajo rotaciones concurrentes.
	MarkRotated(ctx context.Context, id string, replacedByHash string) (bool, error)

	// RevokeFamily revoca todos los tokens vigentes del linaje con un único
	// UPDATE condicional. Retorna la cantidad revocada.
	RevokeFamily(ctx context.Context, family string) (int, error)

	// RevokeAllByUser revoca todos los tokens vigentes del usuario.
	// Retorna la cantidad revocada.
	RevokeAllByUser(ctx context.Context, userID string) (int, error)

	// DeleteExpired elimina filas cuya expiración natural ya pasó.
	// Housekeeping por tiempo: única forma de garbage collection.
	DeleteExpired(ctx context.Context) (int, error)
}
