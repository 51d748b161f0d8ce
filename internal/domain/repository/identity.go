package repository

import (
	"context"
	"time"
)

// Identity representa un usuario provisto por el identity provider externo.
// La autenticación primaria (OAuth/OIDC) ocurre fuera de este servicio; acá
// solo se referencia por ID opaco y se administra su estado MFA.
type Identity struct {
	ID         string
	ExternalID string
	Email      string
	Role       string
	IsActive   bool

	// Atributos de perfil (solo display; el CRUD vive en el collaborator externo)
	DisplayName *string
	FirstName   *string
	LastName    *string
	JobTitle    *string
	Department  *string
	AvatarURL   *string

	// Estado MFA
	MFAEnabled            bool
	MFAMethod             *string
	MFASecretEncrypted    *string
	MFARecoveryCodeHashes []string
	MFAVerifiedAt         *time.Time

	LastLoginAt *time.Time
	LastLoginIP *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UpsertIdentityInput contiene el perfil ya verificado por el IdP externo.
type UpsertIdentityInput struct {
	ExternalID  string
	Email       string
	Role        string
	IsActive    bool
	DisplayName string
	FirstName   string
	LastName    string
	JobTitle    string
	Department  string
	AvatarURL   string
}

// MFASetupInput contiene el material MFA pendiente de confirmación.
type MFASetupInput struct {
	SecretEncrypted    string
	RecoveryCodeHashes []string
	Method             string
}

// IdentityRepository define operaciones sobre identidades.
type IdentityRepository interface {
	// GetByID obtiene una identidad por su ID interno.
	// Retorna ErrNotFound si no existe.
	GetByID(ctx context.Context, id string) (*Identity, error)

	// Upsert crea o actualiza la identidad a partir del perfil externo
	// verificado. Retorna la identidad resultante.
	Upsert(ctx context.Context, input UpsertIdentityInput) (*Identity, error)

	// UpdateLastLogin registra timestamp e IP del último login.
	UpdateLastLogin(ctx context.Context, id string, at time.Time, ip string) error

	// ---- MFA ----

	// SetMFASetup guarda secreto cifrado + recovery codes hasheados + método.
	// No habilita MFA: el flag queda en false hasta confirmar.
	SetMFASetup(ctx context.Context, id string, input MFASetupInput) error

	// EnableMFA marca MFA como habilitado y registra el momento de verificación.
	EnableMFA(ctx context.Context, id string, at time.Time) error

	// SetRecoveryCodeHashes reemplaza el set completo de recovery codes.
	SetRecoveryCodeHashes(ctx context.Context, id string, hashes []string) error

	// DisableMFA limpia secreto, codes, método, verified y el flag enabled.
	DisableMFA(ctx context.Context, id string) error
}
