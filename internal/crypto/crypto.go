// Package crypto implements the symmetric envelope protecting secret content.
//
// Key derivation follows PBKDF2-HMAC-SHA256 over the concatenation of the
// per-secret encryption key and the optional password. The envelope itself is
// AES-256-GCM, so any wrong key, wrong password, or corrupted byte is rejected
// by the authentication tag rather than surfacing as garbage plaintext.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// DefaultPassword is the sentinel used when a secret has no password. It keeps
// encryption and decryption on the same code path (and roughly the same timing
// profile) whether or not a password was supplied.
const DefaultPassword = "no_password_specified"

const (
	// SaltLen is the per-envelope KDF salt length.
	SaltLen = 16
	// NonceLen is the AES-GCM nonce length.
	NonceLen = 12

	keyLen     = 32
	iterations = 100000
)

// ErrAuthenticationFailed is returned when an envelope cannot be opened:
// wrong key, wrong password, or corrupted data. Callers must treat all three
// identically.
var ErrAuthenticationFailed = errors.New("authentication failed")

// GenerateKey returns a fresh high-entropy per-secret encryption key,
// hex-encoded. The key is never derived from user input and never stored.
func GenerateKey() (string, error) {
	b := make([]byte, keyLen)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("generating encryption key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// deriveKey stretches encryptionKey||password into a 32-byte AES key.
func deriveKey(encryptionKey, password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(encryptionKey+password), salt, iterations, keyLen, sha256.New)
}

// Encrypt seals plaintext into a self-describing envelope:
//
//	salt(16) || nonce(12) || AES-256-GCM ciphertext+tag
//
// Salt and nonce are drawn fresh from crypto/rand on every call, so the same
// plaintext never encrypts to the same bytes twice.
func Encrypt(plaintext []byte, encryptionKey, password string) ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}
	nonce := make([]byte, NonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	block, err := aes.NewCipher(deriveKey(encryptionKey, password, salt))
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	envelope := make([]byte, SaltLen+NonceLen, SaltLen+NonceLen+len(plaintext)+gcm.Overhead())
	copy(envelope, salt)
	copy(envelope[SaltLen:], nonce)
	return gcm.Seal(envelope, nonce, plaintext, nil), nil
}

// Decrypt opens an envelope produced by Encrypt. It recomputes the key from
// the envelope's salt and the supplied credentials; any failure — truncated
// envelope, wrong key, wrong password, flipped bit — is reported as
// ErrAuthenticationFailed without further detail.
func Decrypt(envelope []byte, encryptionKey, password string) ([]byte, error) {
	if len(envelope) < SaltLen+NonceLen+16 {
		return nil, ErrAuthenticationFailed
	}
	salt := envelope[:SaltLen]
	nonce := envelope[SaltLen : SaltLen+NonceLen]
	ciphertext := envelope[SaltLen+NonceLen:]

	block, err := aes.NewCipher(deriveKey(encryptionKey, password, salt))
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	return plaintext, nil
}
