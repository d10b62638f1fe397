package token

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	key, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey failed: %v", err)
	}
	c, err := NewCodec(key)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	tok, err := c.Encode("0b8f9c2e-1111-4222-8333-444455556666", "a1b2c3")
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	// Tokens must be safe to place in a URL query string verbatim.
	if strings.ContainsAny(tok, "+/=") {
		t.Errorf("token is not URL-safe: %q", tok)
	}

	id, key, err := c.Decode(tok)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if id != "0b8f9c2e-1111-4222-8333-444455556666" || key != "a1b2c3" {
		t.Errorf("decoded (%q, %q) does not match input", id, key)
	}
}

func TestDecodeTamperedToken(t *testing.T) {
	c := newTestCodec(t)
	tok, _ := c.Encode("some-id", "some-key")

	raw, _ := base64.RawURLEncoding.DecodeString(tok)
	for i := range raw {
		tampered := append([]byte(nil), raw...)
		tampered[i] ^= 0x01
		_, _, err := c.Decode(base64.RawURLEncoding.EncodeToString(tampered))
		if !errors.Is(err, ErrDecodeFailed) {
			t.Fatalf("byte %d: tampered token accepted (err=%v)", i, err)
		}
	}
}

func TestDecodeMalformed(t *testing.T) {
	c := newTestCodec(t)

	for _, tok := range []string{"", "!!!not-base64!!!", "YWJj", base64.RawURLEncoding.EncodeToString(make([]byte, 5))} {
		if _, _, err := c.Decode(tok); !errors.Is(err, ErrDecodeFailed) {
			t.Errorf("token %q: expected ErrDecodeFailed, got %v", tok, err)
		}
	}
}

func TestDecodeWrongMasterKey(t *testing.T) {
	a := newTestCodec(t)
	b := newTestCodec(t)

	tok, _ := a.Encode("id", "key")
	if _, _, err := b.Decode(tok); !errors.Is(err, ErrDecodeFailed) {
		t.Errorf("token sealed under a different master key should not decode, got %v", err)
	}
}

func TestNewCodecRejectsBadKeys(t *testing.T) {
	if _, err := NewCodec("zzzz"); err == nil {
		t.Error("non-hex master key should be rejected")
	}
	if _, err := NewCodec("abcd"); err == nil {
		t.Error("short master key should be rejected")
	}
}
