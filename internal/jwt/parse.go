package jwt

import (
	"errors"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired indica un token con firma válida pero vencido.
	// Expiración y firma inválida son fallos distintos para el caller.
	ErrExpired = errors.New("jwt: token expired")

	// ErrInvalid cubre firma inválida, claims malformadas o issuer ajeno.
	ErrInvalid = errors.New("jwt: invalid token")
)

// Parse valida firma EdDSA, issuer y ventana temporal (leeway 30s) y
// devuelve las claims tipadas.
func (i *Issuer) Parse(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	tok, err := jwtv5.ParseWithClaims(token, claims, i.Keyfunc(),
		jwtv5.WithValidMethods([]string{"EdDSA"}),
		jwtv5.WithIssuer(i.Iss),
		jwtv5.WithLeeway(30*time.Second),
	)
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}
	if !tok.Valid {
		return nil, ErrInvalid
	}
	return claims, nil
}

// DecodeUnverified parsea las claims SIN validar firma ni expiración.
// Sólo para extraer exp/sessionId al poblar la blacklist en logout: un
// token que ni siquiera parsea no necesita blacklist.
func DecodeUnverified(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parser := jwtv5.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil, ErrInvalid
	}
	return claims, nil
}
