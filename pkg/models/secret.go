package models

import "time"

// Secret is the single persisted record for a one-time secret. Rows are
// write-once: they are inserted at creation and only ever deleted, never
// updated. Deletion is physical — there is no soft-delete state.
type Secret struct {
	ID               string
	EncryptedContent []byte
	RequiresPassword bool
	ExpiresAt        time.Time
	CreatedAt        time.Time
}

// Expired reports whether the secret is past its expiry at the given instant.
func (s *Secret) Expired(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}
