// Package auth implementa el ciclo de vida de tokens y sesiones: emisión y
// rotación de refresh tokens con detección de reuso, registro dual de
// sesiones (cache + store durable), segundo factor TOTP con lockout y
// blacklist de access tokens.
package auth

import "time"

// Prefijos de keys en el cache. El contador de intentos MFA usa su propio
// prefijo (mfa_attempt:), configurado en el AttemptLimiter.
const (
	blacklistPrefix = "bl:"
	sessionPrefix   = "sess:"
)

// TokenPair es el par emitido al cliente. El refresh token viaja en crudo
// una única vez; después sólo existe su hash.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// ClientInfo describe el origen de la operación (para sesiones y auditoría).
type ClientInfo struct {
	IPAddress  string
	UserAgent  string
	DeviceInfo string
}

// ExternalProfile es el perfil ya verificado por el identity provider
// upstream. La autenticación primaria ocurre fuera de este servicio.
type ExternalProfile struct {
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

// LoginResult es la salida de Login. Si MfaRequired es true, los tokens
// emitidos llevan mfaVerified=false y sólo sirven para completar el
// segundo factor. Al completar el factor se re-emite únicamente el access
// token, así que RefreshToken viaja vacío en ese resultado.
type LoginResult struct {
	UserID      string
	SessionID   string
	Tokens      TokenPair
	MfaRequired bool
}

// MfaEnrollment es el material que ve el usuario al enrolar su app
// autenticadora. RecoveryCodes se muestra esta única vez.
type MfaEnrollment struct {
	Secret        string
	OtpauthURL    string
	QRCodePNG     []byte
	RecoveryCodes []string
}

// MfaStatus resume el estado MFA de un usuario.
type MfaStatus struct {
	Enabled           bool
	Method            string
	VerifiedAt        *time.Time
	RecoveryCodesLeft int
	PendingSetup      bool
}
