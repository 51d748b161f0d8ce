// Package recovery genera y verifica códigos de recuperación MFA.
//
// Cada código es de un solo uso, con formato XXXX-XXXX (hex mayúsculas).
// En la base sólo se persisten los hashes bcrypt; el texto plano se
// muestra una única vez durante el enrolamiento.
package recovery

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Count es la cantidad de códigos emitidos por enrolamiento.
const Count = 8

const bcryptCost = 10

// Generate emite Count códigos nuevos junto con sus hashes bcrypt,
// en el mismo orden.
func Generate() (codes []string, hashes []string, err error) {
	codes = make([]string, 0, Count)
	hashes = make([]string, 0, Count)
	for i := 0; i < Count; i++ {
		code, err := newCode()
		if err != nil {
			return nil, nil, err
		}
		h, err := bcrypt.GenerateFromPassword([]byte(code), bcryptCost)
		if err != nil {
			return nil, nil, fmt.Errorf("recovery: hash: %w", err)
		}
		codes = append(codes, code)
		hashes = append(hashes, string(h))
	}
	return codes, hashes, nil
}

// Consume busca el código entre los hashes y, si matchea, retorna la lista
// de hashes restantes (el código queda quemado). ok es false si ningún hash
// corresponde al código.
//
// El escaneo es lineal: con 8 códigos el costo lo domina bcrypt, no el loop.
func Consume(ctx context.Context, code string, hashes []string) (remaining []string, ok bool) {
	code = normalize(code)
	for i, h := range hashes {
		if ctx.Err() != nil {
			return nil, false
		}
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(code)) == nil {
			remaining = make([]string, 0, len(hashes)-1)
			remaining = append(remaining, hashes[:i]...)
			remaining = append(remaining, hashes[i+1:]...)
			return remaining, true
		}
	}
	return nil, false
}

// newCode genera un código XXXX-XXXX desde 4 bytes aleatorios.
func newCode() (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("recovery: random: %w", err)
	}
	s := strings.ToUpper(hex.EncodeToString(b))
	return s[:4] + "-" + s[4:], nil
}

// normalize tolera códigos pegados sin guión o en minúsculas.
func normalize(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "-", "")
	if len(code) == 8 {
		return code[:4] + "-" + code[4:]
	}
	return code
}
