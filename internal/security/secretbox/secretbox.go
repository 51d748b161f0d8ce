// Package secretbox cifra secretos en reposo (AES-256-GCM).
//
// La clave se deriva de una passphrase via scrypt, así la configuración
// puede ser una frase humana en vez de 32 bytes exactos. El formato de
// salida es base64(nonce)|base64(ciphertext).
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
)

const (
	nonceSizeGCM = 12  // AES-GCM nonce recomendado (96 bits)
	keyLength    = 32  // 32 bytes => AES-256
	sep          = "|" // nonce|ciphertext (ambos en base64)

	// Salt fijo de derivación. La passphrase es el único secreto; el salt
	// sólo separa el dominio de esta derivación de otros usos de scrypt.
	kdfSalt = "mfa-salt"
)

// ErrInvalidFormat indica que el ciphertext no tiene el formato esperado.
var ErrInvalidFormat = errors.New("secretbox: formato inválido, esperado base64(nonce)|base64(ciphertext)")

// Box cifra y descifra con una clave derivada de una passphrase.
type Box struct {
	key []byte
}

// New deriva la clave AES-256 desde la passphrase via scrypt.
func New(passphrase string) (*Box, error) {
	if strings.TrimSpace(passphrase) == "" {
		return nil, errors.New("secretbox: passphrase vacía")
	}
	key, err := scrypt.Key([]byte(passphrase), []byte(kdfSalt), 32768, 8, 1, keyLength)
	if err != nil {
		return nil, fmt.Errorf("secretbox: scrypt: %w", err)
	}
	return &Box{key: key}, nil
}

// Encrypt cifra plainText y devuelve base64(nonce)|base64(ciphertext).
func (b *Box) Encrypt(plainText string) (string, error) {
	aesgcm, err := b.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secretbox: nonce random: %w", err)
	}

	ct := aesgcm.Seal(nil, nonce, []byte(plainText), nil)

	nonceB64 := base64.StdEncoding.EncodeToString(nonce)
	ctB64 := base64.StdEncoding.EncodeToString(ct)
	return nonceB64 + sep + ctB64, nil
}

// Decrypt recibe base64(nonce)|base64(ciphertext) y devuelve el texto plano.
func (b *Box) Decrypt(cipherText string) (string, error) {
	parts := strings.Split(cipherText, sep)
	if len(parts) != 2 {
		return "", ErrInvalidFormat
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return "", fmt.Errorf("secretbox: decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return "", fmt.Errorf("secretbox: decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSizeGCM {
		return "", fmt.Errorf("secretbox: nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))
	}

	aesgcm, err := b.gcm()
	if err != nil {
		return "", err
	}

	pt, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("secretbox: gcm auth/decrypt: %w", err)
	}
	return string(pt), nil
}

func (b *Box) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("secretbox: cipher.NewGCM: %w", err)
	}
	return aesgcm, nil
}
