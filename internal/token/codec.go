// Package token implements the opaque share-token codec. A token carries the
// storage id and the per-secret decryption key, sealed under a server-wide
// master key, so neither ever appears in the clear outside the share link and
// a database compromise alone reveals neither.
package token

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrDecodeFailed is returned for any token that does not decode cleanly:
// bad encoding, truncation, tampering, or a payload sealed under a different
// master key. It is distinct from "not found".
var ErrDecodeFailed = errors.New("token decode failed")

// Codec encodes and decodes share tokens under a fixed master key.
type Codec struct {
	aead cipher.AEAD
}

// payload is the structured record inside a token.
type payload struct {
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
}

// NewCodec builds a Codec from a hex-encoded 32-byte master key. The master
// key is server configuration and independent of any per-secret key.
func NewCodec(masterKeyHex string) (*Codec, error) {
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding master key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("master key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return &Codec{aead: aead}, nil
}

// GenerateMasterKey returns a fresh hex-encoded master key, for first-run
// provisioning.
func GenerateMasterKey() (string, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generating master key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// Encode seals {id, encryptionKey} into a URL-safe opaque token.
func (c *Codec) Encode(id, encryptionKey string) (string, error) {
	plaintext, err := json.Marshal(payload{SecretID: id, SecretKey: encryptionKey})
	if err != nil {
		return "", fmt.Errorf("marshaling token payload: %w", err)
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	// Prepend nonce to ciphertext, same layout as the stored envelopes.
	sealed := c.aead.Seal(nonce, nonce, plaintext, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Decode opens a token and returns the storage id and decryption key.
// Tampered or malformed tokens fail with ErrDecodeFailed; the caller decides
// whether to merge that with "not found" before surfacing it.
func (c *Codec) Decode(token string) (id, encryptionKey string, err error) {
	sealed, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", ErrDecodeFailed
	}
	nonceSize := c.aead.NonceSize()
	if len(sealed) < nonceSize+c.aead.Overhead() {
		return "", "", ErrDecodeFailed
	}
	plaintext, err := c.aead.Open(nil, sealed[:nonceSize], sealed[nonceSize:], nil)
	if err != nil {
		return "", "", ErrDecodeFailed
	}
	var p payload
	if err := json.Unmarshal(plaintext, &p); err != nil {
		return "", "", ErrDecodeFailed
	}
	if p.SecretID == "" || p.SecretKey == "" {
		return "", "", ErrDecodeFailed
	}
	return p.SecretID, p.SecretKey, nil
}
