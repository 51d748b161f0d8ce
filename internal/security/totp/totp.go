// Package totp envuelve la generación y verificación de códigos TOTP
// (RFC 6238): SHA1, 6 dígitos, período de 30s, ventana de ±1 paso.
package totp

import (
	"bytes"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

const (
	period = 30
	skew   = 1
)

// Enrollment contiene lo que el usuario necesita para registrar su app
// autenticadora: el secreto base32, la URL otpauth:// y el QR en PNG.
type Enrollment struct {
	Secret    string
	URL       string
	QRCodePNG []byte
}

// Generate crea un secreto nuevo y su material de enrolamiento.
func Generate(issuer, accountName string) (*Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return nil, fmt.Errorf("totp: generate: %w", err)
	}

	img, err := key.Image(256, 256)
	if err != nil {
		return nil, fmt.Errorf("totp: qr image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("totp: qr encode: %w", err)
	}

	return &Enrollment{
		Secret:    key.Secret(),
		URL:       key.URL(),
		QRCodePNG: buf.Bytes(),
	}, nil
}

// Verify valida un código contra el secreto base32 en el instante t.
// Acepta el paso actual y los adyacentes (skew 1) para tolerar drift de reloj.
func Verify(code, secret string, t time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, t, totp.ValidateOpts{
		Period:    period,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return false
	}
	return ok
}
