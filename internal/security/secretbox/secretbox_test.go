package secretbox

import (
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	box, err := New("una-passphrase-de-test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, plain := range []string{
		"JBSWY3DPEHPK3PXP",
		"",
		"texto con espacios y ñ",
	} {
		ct, err := box.Encrypt(plain)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plain, err)
		}
		if !strings.Contains(ct, "|") {
			t.Fatalf("Encrypt(%q) = %q, falta el separador nonce|ciphertext", plain, ct)
		}
		got, err := box.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if got != plain {
			t.Fatalf("round trip = %q, want %q", got, plain)
		}
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	box, err := New("una-passphrase-de-test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, err := box.Encrypt("secreto")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	b, err := box.Encrypt("secreto")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if a == b {
		t.Fatal("dos cifrados del mismo texto no deben coincidir (nonce aleatorio)")
	}
}

func TestDecryptRejectsTampering(t *testing.T) {
	box, err := New("una-passphrase-de-test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ct, err := box.Encrypt("secreto")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	// Voltear un carácter del ciphertext rompe la autenticación GCM.
	tampered := []byte(ct)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}
	if _, err := box.Decrypt(string(tampered)); err == nil {
		t.Fatal("Decrypt aceptó ciphertext alterado")
	}
}

func TestDecryptRejectsWrongPassphrase(t *testing.T) {
	box, err := New("passphrase-a")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	other, err := New("passphrase-b")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ct, err := box.Encrypt("secreto")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := other.Decrypt(ct); err == nil {
		t.Fatal("Decrypt con otra passphrase debe fallar")
	}
}

func TestDecryptRejectsBadFormat(t *testing.T) {
	box, err := New("una-passphrase-de-test")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, bad := range []string{"", "sin-separador", "a|b|c"} {
		if _, err := box.Decrypt(bad); err == nil {
			t.Fatalf("Decrypt(%q) aceptó formato inválido", bad)
		}
	}
}

func TestNewRejectsEmptyPassphrase(t *testing.T) {
	if _, err := New("   "); err == nil {
		t.Fatal("New con passphrase vacía debe fallar")
	}
}
