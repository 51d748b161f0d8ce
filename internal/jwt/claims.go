package jwt

import (
	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// AccessClaims son las claims de un access token.
//
// mfaVerified indica si el segundo factor ya fue completado: los tokens
// emitidos antes de completar MFA (y los re-emitidos por rotación) lo llevan
// en false cuando el usuario tiene MFA habilitado.
type AccessClaims struct {
	Email       string `json:"email,omitempty"`
	Role        string `json:"role,omitempty"`
	MfaVerified bool   `json:"mfaVerified"`
	SessionID   string `json:"sessionId,omitempty"`

	jwtv5.RegisteredClaims
}
