package jwt

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
)

// Issuer firma access tokens EdDSA con una clave ed25519 única.
// El header kid identifica la clave para permitir rotación futura sin
// invalidar tokens vigentes.
type Issuer struct {
	Iss       string        // "iss"
	AccessTTL time.Duration // TTL de los access tokens (ej: 15m)

	kid  string
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// NewIssuer construye un Issuer desde una seed ed25519 en base64 (32 bytes).
// Si la seed está vacía genera una clave efímera: sirve para dev, pero los
// tokens no sobreviven un reinicio del proceso.
func NewIssuer(iss, seedB64 string, accessTTL time.Duration) (*Issuer, error) {
	var priv ed25519.PrivateKey
	if seedB64 == "" {
		_, p, err := ed25519.GenerateKey(nil)
		if err != nil {
			return nil, fmt.Errorf("jwt: generate key: %w", err)
		}
		priv = p
	} else {
		seed, err := base64.StdEncoding.DecodeString(seedB64)
		if err != nil {
			return nil, fmt.Errorf("jwt: decode seed: %w", err)
		}
		if len(seed) != ed25519.SeedSize {
			return nil, fmt.Errorf("jwt: seed debe ser %d bytes, obtuvo %d", ed25519.SeedSize, len(seed))
		}
		priv = ed25519.NewKeyFromSeed(seed)
	}

	pub := priv.Public().(ed25519.PublicKey)
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}

	return &Issuer{
		Iss:       iss,
		AccessTTL: accessTTL,
		kid:       deriveKID(pub),
		priv:      priv,
		pub:       pub,
	}, nil
}

// ActiveKID devuelve el KID de la clave de firma.
func (i *Issuer) ActiveKID() string { return i.kid }

// Keyfunc devuelve un jwt.Keyfunc que valida el 'kid' del header contra la
// clave conocida.
func (i *Issuer) Keyfunc() jwtv5.Keyfunc {
	return func(t *jwtv5.Token) (any, error) {
		if kid, _ := t.Header["kid"].(string); kid != "" && kid != i.kid {
			return nil, errors.New("unknown kid")
		}
		return i.pub, nil
	}
}

// IssueAccess emite un access token firmado y devuelve el JWT y su expiración.
func (i *Issuer) IssueAccess(sub string, claims AccessClaims) (string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(i.AccessTTL)

	claims.RegisteredClaims = jwtv5.RegisteredClaims{
		Issuer:    i.Iss,
		Subject:   sub,
		IssuedAt:  jwtv5.NewNumericDate(now),
		NotBefore: jwtv5.NewNumericDate(now),
		ExpiresAt: jwtv5.NewNumericDate(exp),
	}

	tk := jwtv5.NewWithClaims(jwtv5.SigningMethodEdDSA, claims)
	tk.Header["kid"] = i.kid
	tk.Header["typ"] = "JWT"

	signed, err := tk.SignedString(i.priv)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// deriveKID calcula un identificador corto y estable desde la pubkey.
func deriveKID(pub ed25519.PublicKey) string {
	sum := sha256.Sum256(pub)
	return hex.EncodeToString(sum[:8])
}
