package storage

import (
	"context"
	"errors"
	"time"

	"github.com/org/secretshare/pkg/models"
)

// ErrNotFound is returned when a requested secret does not exist. A consumed
// or expired secret is indistinguishable from one that never existed.
var ErrNotFound = errors.New("not found")

// Tx is the view of the store inside a consumption transaction.
type Tx interface {
	// FetchSecretForUpdate loads a secret under an exclusive row lock held
	// until the enclosing transaction commits or rolls back. Concurrent calls
	// for the same id block until the lock holder finishes.
	FetchSecretForUpdate(ctx context.Context, id string) (*models.Secret, error)

	// DeleteSecret removes a secret row inside the transaction. Idempotent.
	DeleteSecret(ctx context.Context, id string) error
}

// Store is the persistence contract for secret records.
type Store interface {
	// CreateSecret inserts a new record.
	CreateSecret(ctx context.Context, secret *models.Secret) error

	// GetSecret is a plain non-locking read.
	GetSecret(ctx context.Context, id string) (*models.Secret, error)

	// DeleteSecret removes a record outside any transaction. Idempotent.
	DeleteSecret(ctx context.Context, id string) error

	// DeleteExpired removes every record past its expiry and returns the
	// number removed. Used by the periodic sweeper.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// InTx runs fn inside a single transaction. A non-nil error from fn rolls
	// everything back; otherwise the transaction commits. A caller cancelled
	// while waiting on a row lock rolls back without having mutated state.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	// CountSecrets reports the number of live records, for metrics.
	CountSecrets(ctx context.Context) (int64, error)

	Close()
}
