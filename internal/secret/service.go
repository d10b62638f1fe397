// Package secret implements the one-time secret lifecycle: creation,
// share-token exchange, and the single-use consumption path.
//
// A secret is ACTIVE from creation until the first successful reveal or its
// expiry, whichever comes first; both transitions delete the row physically.
// Exclusivity of consumption is delegated to the store's row lock, never to
// in-process mutexes, so multiple instances behind a load balancer stay
// correct.
package secret

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/org/secretshare/internal/crypto"
	"github.com/org/secretshare/internal/ratelimit"
	"github.com/org/secretshare/internal/storage"
	"github.com/org/secretshare/internal/token"
	"github.com/org/secretshare/pkg/models"
	"github.com/rs/zerolog/log"
)

// Input bounds on creation.
const (
	MaxContentLen  = 200000
	MaxPasswordLen = 100
	MinTTLMinutes  = 1
	MaxTTLMinutes  = 24 * 60 * 5 // five days
)

// DefaultLifetime applies when a create request carries no TTL.
const DefaultLifetime = time.Hour

// RateLimitConfig controls brute-force throttling on the reveal path. When
// Enabled is false both checks are skipped entirely.
type RateLimitConfig struct {
	Enabled        bool
	SecretAttempts int
	SecretWindow   time.Duration
	ClientAttempts int
	ClientWindow   time.Duration
}

// DefaultRateLimits mirror the deployed defaults: a tight per-secret window
// and a looser hourly per-client one.
func DefaultRateLimits() RateLimitConfig {
	return RateLimitConfig{
		Enabled:        true,
		SecretAttempts: 5,
		SecretWindow:   time.Minute,
		ClientAttempts: 20,
		ClientWindow:   time.Hour,
	}
}

// Config holds Service tuning. Zero values fall back to defaults.
type Config struct {
	DefaultTTL time.Duration
	RateLimits RateLimitConfig
	// RevealDelay, when positive, is slept before every reveal return —
	// success and failure alike — to blunt online brute-force timing.
	RevealDelay time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Service orchestrates the secret lifecycle against its injected
// collaborators. All methods are safe for concurrent use.
type Service struct {
	store   storage.Store
	limiter *ratelimit.Limiter
	codec   *token.Codec
	now     func() time.Time

	defaultTTL  time.Duration
	limits      RateLimitConfig
	revealDelay time.Duration
}

func NewService(store storage.Store, limiter *ratelimit.Limiter, codec *token.Codec, cfg Config) *Service {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultLifetime
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:       store,
		limiter:     limiter,
		codec:       codec,
		now:         cfg.Now,
		defaultTTL:  cfg.DefaultTTL,
		limits:      cfg.RateLimits,
		revealDelay: cfg.RevealDelay,
	}
}

// CreateResult is returned to the caller on creation. EncryptionKey is never
// stored; losing it makes the secret unrecoverable by design.
type CreateResult struct {
	ID               string
	EncryptionKey    string
	ExpiresAt        time.Time
	ExpiresInMinutes int
	RequiresPassword bool
}

// ResolveResult describes a secret for pre-reveal display, without touching
// its content.
type ResolveResult struct {
	ID               string
	RequiresPassword bool
	ExpiresAt        time.Time
}

// CreateSecret validates input, encrypts content under a fresh key, and
// stores the sealed record. ttlMinutes of 0 selects the default lifetime.
func (s *Service) CreateSecret(ctx context.Context, content, password string, ttlMinutes int) (*CreateResult, error) {
	if content == "" {
		return nil, fmt.Errorf("%w: content must not be empty", ErrInvalidInput)
	}
	if len(content) > MaxContentLen {
		return nil, fmt.Errorf("%w: content exceeds %d bytes", ErrInvalidInput, MaxContentLen)
	}
	if len(password) > MaxPasswordLen {
		return nil, fmt.Errorf("%w: password exceeds %d bytes", ErrInvalidInput, MaxPasswordLen)
	}
	ttl := s.defaultTTL
	if ttlMinutes != 0 {
		if ttlMinutes < MinTTLMinutes || ttlMinutes > MaxTTLMinutes {
			return nil, fmt.Errorf("%w: ttl must be %d-%d minutes", ErrInvalidInput, MinTTLMinutes, MaxTTLMinutes)
		}
		ttl = time.Duration(ttlMinutes) * time.Minute
	}

	encryptionKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating encryption key: %w", err)
	}
	envelope, err := crypto.Encrypt([]byte(content), encryptionKey, passwordOrDefault(password))
	if err != nil {
		return nil, fmt.Errorf("encrypting content: %w", err)
	}

	now := s.now()
	record := &models.Secret{
		ID:               uuid.NewString(),
		EncryptedContent: envelope,
		RequiresPassword: password != "",
		ExpiresAt:        now.Add(ttl),
		CreatedAt:        now,
	}
	if err := s.store.CreateSecret(ctx, record); err != nil {
		return nil, fmt.Errorf("storing secret: %w", err)
	}

	return &CreateResult{
		ID:               record.ID,
		EncryptionKey:    encryptionKey,
		ExpiresAt:        record.ExpiresAt,
		ExpiresInMinutes: int(ttl / time.Minute),
		RequiresPassword: record.RequiresPassword,
	}, nil
}

// BuildShareToken seals the storage id and decryption key into an opaque
// share token.
func (s *Service) BuildShareToken(id, encryptionKey string) (string, error) {
	return s.codec.Encode(id, encryptionKey)
}

// ResolveShareToken decodes a token and checks the record still exists, for
// pre-reveal display. Decode failures and missing or expired records are all
// reported as ErrNotFound so a caller cannot tell which occurred.
func (s *Service) ResolveShareToken(ctx context.Context, tok string) (*ResolveResult, error) {
	id, _, err := s.codec.Decode(tok)
	if err != nil {
		return nil, ErrNotFound
	}
	record, err := s.store.GetSecret(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("loading secret: %w", err)
	}
	if record.Expired(s.now()) {
		s.deleteExpiredRecord(ctx, id)
		return nil, ErrNotFound
	}
	return &ResolveResult{
		ID:               record.ID,
		RequiresPassword: record.RequiresPassword,
		ExpiresAt:        record.ExpiresAt,
	}, nil
}

// RevealSecret decodes a token and consumes the secret it names. clientAddr
// feeds the per-client attempt counter.
func (s *Service) RevealSecret(ctx context.Context, tok, password, clientAddr string) (string, error) {
	if s.revealDelay > 0 {
		// Uniform on success and failure, so response timing says nothing
		// about which path was taken.
		defer time.Sleep(s.revealDelay)
	}
	id, encryptionKey, err := s.codec.Decode(tok)
	if err != nil {
		return "", ErrNotFound
	}
	return s.Consume(ctx, id, encryptionKey, password, clientAddr)
}

// Consume reveals a secret at most once. Of N concurrent calls for the same
// id, at most one returns the plaintext; the rest observe ErrNotFound once
// the winner's delete commits. Failed attempts (wrong password, throttled,
// password missing) leave the record in place.
func (s *Service) Consume(ctx context.Context, id, encryptionKey, password, clientAddr string) (string, error) {
	// Cheap rejection before taking the row lock.
	record, err := s.store.GetSecret(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("loading secret: %w", err)
	}
	if record.Expired(s.now()) {
		s.deleteExpiredRecord(ctx, id)
		return "", ErrNotFound
	}

	var plaintext string
	err = s.store.InTx(ctx, func(tx storage.Tx) error {
		locked, err := tx.FetchSecretForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("locking secret: %w", err)
		}
		// The row may have expired between the pre-check and the lock.
		if locked.Expired(s.now()) {
			if err := tx.DeleteSecret(ctx, id); err != nil {
				return fmt.Errorf("deleting expired secret: %w", err)
			}
			return ErrNotFound
		}

		if err := s.checkRateLimits(ctx, id, clientAddr); err != nil {
			return err
		}

		if locked.RequiresPassword && password == "" {
			return ErrPasswordRequired
		}

		decrypted, err := crypto.Decrypt(locked.EncryptedContent, encryptionKey, passwordOrDefault(password))
		if err != nil {
			log.Error().Str("secret_id", id).Str("client", clientAddr).Msg("secret decryption failed")
			return ErrUnauthorized
		}

		// Delete inside the same transaction: the reveal and the removal
		// commit atomically, so no observer sees a consumed-but-present row.
		if err := tx.DeleteSecret(ctx, id); err != nil {
			return fmt.Errorf("deleting secret: %w", err)
		}
		plaintext = string(decrypted)
		return nil
	})
	if err != nil {
		return "", err
	}
	return plaintext, nil
}

func (s *Service) checkRateLimits(ctx context.Context, id, clientAddr string) error {
	if !s.limits.Enabled || s.limiter == nil {
		return nil
	}
	secretKey := ratelimit.SecretKey(id)
	clientKey := ratelimit.ClientKey(clientAddr)

	if !s.limiter.Allow(ctx, secretKey, s.limits.SecretAttempts) {
		log.Warn().Str("secret_id", id).Msg("per-secret attempt limit reached")
		return ErrTooManyAttempts
	}
	if !s.limiter.Allow(ctx, clientKey, s.limits.ClientAttempts) {
		log.Warn().Str("client", clientAddr).Msg("per-client attempt limit reached")
		return ErrTooManyAttempts
	}
	s.limiter.Hit(ctx, secretKey, s.limits.SecretWindow)
	s.limiter.Hit(ctx, clientKey, s.limits.ClientWindow)
	return nil
}

// deleteExpiredRecord removes a record discovered past expiry outside a
// transaction. Failure is logged and swallowed: the sweeper will catch it and
// the caller's answer is ErrNotFound either way.
func (s *Service) deleteExpiredRecord(ctx context.Context, id string) {
	if err := s.store.DeleteSecret(ctx, id); err != nil {
		log.Error().Err(err).Str("secret_id", id).Msg("deleting expired secret")
	}
}

func passwordOrDefault(password string) string {
	if password == "" {
		return crypto.DefaultPassword
	}
	return password
}
