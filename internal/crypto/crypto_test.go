package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey failed: %v", err)
	}
	if len(key) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(key))
	}
	key2, _ := GenerateKey()
	if key == key2 {
		t.Error("two generated keys should not be equal")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, _ := GenerateKey()

	cases := map[string][]byte{
		"empty":     {},
		"short":     []byte("hello"),
		"unicode":   []byte("p@sswörd → 秘密"),
		"binary":    {0x00, 0xff, 0x10, 0x80, 0x00},
		"multiline": []byte("line one\nline two\nline three"),
		"large":     bytes.Repeat([]byte("0123456789abcdef"), 128*1024), // 2 MiB
	}

	for name, plaintext := range cases {
		t.Run(name, func(t *testing.T) {
			envelope, err := Encrypt(plaintext, key, "hunter2")
			if err != nil {
				t.Fatalf("Encrypt failed: %v", err)
			}
			if len(envelope) < SaltLen+NonceLen+16 {
				t.Fatalf("envelope too short: %d bytes", len(envelope))
			}
			decrypted, err := Decrypt(envelope, key, "hunter2")
			if err != nil {
				t.Fatalf("Decrypt failed: %v", err)
			}
			if !bytes.Equal(decrypted, plaintext) {
				t.Errorf("round trip mismatch: got %d bytes, want %d", len(decrypted), len(plaintext))
			}
		})
	}
}

func TestEncryptNotDeterministic(t *testing.T) {
	key, _ := GenerateKey()
	plaintext := []byte("same input")

	a, _ := Encrypt(plaintext, key, DefaultPassword)
	b, _ := Encrypt(plaintext, key, DefaultPassword)
	if bytes.Equal(a, b) {
		t.Error("two envelopes for the same plaintext should differ (fresh salt and nonce)")
	}
}

func TestDecryptWrongPassword(t *testing.T) {
	key, _ := GenerateKey()
	envelope, _ := Encrypt([]byte("secret data"), key, "correct")

	_, err := Decrypt(envelope, key, "wrong")
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key, _ := GenerateKey()
	wrongKey, _ := GenerateKey()
	envelope, _ := Encrypt([]byte("secret data"), key, DefaultPassword)

	_, err := Decrypt(envelope, wrongKey, DefaultPassword)
	if !errors.Is(err, ErrAuthenticationFailed) {
		t.Errorf("expected ErrAuthenticationFailed, got %v", err)
	}
}

func TestDecryptTamperedEnvelope(t *testing.T) {
	key, _ := GenerateKey()
	envelope, _ := Encrypt([]byte("secret data"), key, DefaultPassword)

	// Flip one bit in every byte position; all must be rejected.
	for i := range envelope {
		tampered := bytes.Clone(envelope)
		tampered[i] ^= 0x01
		if _, err := Decrypt(tampered, key, DefaultPassword); !errors.Is(err, ErrAuthenticationFailed) {
			t.Fatalf("byte %d: tampered envelope accepted (err=%v)", i, err)
		}
	}
}

func TestDecryptTruncatedEnvelope(t *testing.T) {
	key, _ := GenerateKey()
	for _, n := range []int{0, 1, SaltLen, SaltLen + NonceLen, SaltLen + NonceLen + 15} {
		if _, err := Decrypt(make([]byte, n), key, DefaultPassword); !errors.Is(err, ErrAuthenticationFailed) {
			t.Errorf("length %d: expected ErrAuthenticationFailed, got %v", n, err)
		}
	}
}

func TestSentinelPasswordMatchesEmpty(t *testing.T) {
	// A secret sealed with the sentinel must not open with any other password.
	key, _ := GenerateKey()
	envelope, _ := Encrypt([]byte("no password set"), key, DefaultPassword)

	if _, err := Decrypt(envelope, key, ""); !errors.Is(err, ErrAuthenticationFailed) {
		t.Error("empty password should not open a sentinel-sealed envelope")
	}
	if _, err := Decrypt(envelope, key, DefaultPassword); err != nil {
		t.Errorf("sentinel password should open the envelope: %v", err)
	}
}
