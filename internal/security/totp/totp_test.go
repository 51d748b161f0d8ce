package totp

import (
	"bytes"
	"strings"
	"testing"
	"time"

	totplib "github.com/pquerna/otp/totp"
)

func TestGenerate(t *testing.T) {
	enr, err := Generate("littlejohn", "ana@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if enr.Secret == "" {
		t.Fatal("secreto vacío")
	}
	if !strings.HasPrefix(enr.URL, "otpauth://totp/") {
		t.Fatalf("URL = %q", enr.URL)
	}
	if !strings.Contains(enr.URL, "issuer=littlejohn") {
		t.Fatalf("URL sin issuer: %q", enr.URL)
	}
	// PNG: los primeros bytes son la firma del formato.
	if !bytes.HasPrefix(enr.QRCodePNG, []byte("\x89PNG")) {
		t.Fatal("el QR no es un PNG")
	}
}

func TestVerify(t *testing.T) {
	enr, err := Generate("littlejohn", "ana@example.com")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	now := time.Now()
	code, err := totplib.GenerateCode(enr.Secret, now)
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}

	if !Verify(code, enr.Secret, now) {
		t.Fatal("Verify rechazó el código del paso actual")
	}

	// Skew 1: el código del paso anterior sigue siendo válido.
	prev, err := totplib.GenerateCode(enr.Secret, now.Add(-30*time.Second))
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if !Verify(prev, enr.Secret, now) {
		t.Fatal("Verify rechazó el código del paso anterior (skew 1)")
	}

	// Fuera de la ventana ya no pasa.
	old, err := totplib.GenerateCode(enr.Secret, now.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("GenerateCode: %v", err)
	}
	if Verify(old, enr.Secret, now) {
		t.Fatal("Verify aceptó un código fuera de la ventana")
	}

	if Verify("000000", enr.Secret, now) {
		t.Fatal("Verify aceptó un código arbitrario")
	}
	if Verify("no-num", enr.Secret, now) {
		t.Fatal("Verify aceptó un código malformado")
	}
}
