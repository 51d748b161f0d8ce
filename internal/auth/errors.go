package auth

import "errors"

// Errores del dominio de autenticación. Los fallos de credenciales y de
// sesión colapsan en mensajes genéricos hacia afuera: distinguirlos sería
// un oráculo para un atacante. La única excepción deliberada es el reuso
// de refresh tokens, que se señala explícitamente porque el cliente debe
// reaccionar (re-login completo).
var (
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrUserInactive         = errors.New("user account is inactive")
	ErrSessionInvalid       = errors.New("session is invalid or expired")

	ErrRefreshTokenInvalid  = errors.New("refresh token is invalid")
	ErrRefreshTokenExpired  = errors.New("refresh token is expired")
	ErrRefreshReuseDetected = errors.New("refresh token reuse detected")

	ErrMfaRequired       = errors.New("mfa verification required")
	ErrMfaInvalidCode    = errors.New("invalid mfa code")
	ErrMfaLockedOut      = errors.New("too many failed mfa attempts")
	ErrMfaAlreadyEnabled = errors.New("mfa is already enabled")
	ErrMfaNotEnabled     = errors.New("mfa is not enabled")
	ErrMfaSetupRequired  = errors.New("mfa setup must be completed first")

	ErrRecoveryCodeInvalid = errors.New("invalid recovery code")
)
