package storage

import (
	"context"
	"sync"
	"time"

	"github.com/org/secretshare/pkg/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps secrets in a map guarded by a single mutex. InTx holds
// the mutex for the whole transaction, which gives the same exclusivity as a
// row lock for a single-process deployment. Intended for tests and dev mode.
type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string]*models.Secret
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]*models.Secret)}
}

func (s *MemoryStore) CreateSecret(ctx context.Context, secret *models.Secret) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *secret
	s.secrets[secret.ID] = &cp
	return nil
}

func (s *MemoryStore) GetSecret(ctx context.Context, id string) (*models.Secret, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(id)
}

func (s *MemoryStore) DeleteSecret(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, id)
	return nil
}

func (s *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, secret := range s.secrets {
		if secret.Expired(now) {
			delete(s.secrets, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) CountSecrets(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.secrets)), nil
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	// The map is only mutated through the tx while the mutex is held, so a
	// returned error leaves prior state intact: deletion is the only mutation
	// and the service performs it last.
	return fn(&memTx{store: s})
}

func (s *MemoryStore) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets = nil
}

// get expects s.mu to be held.
func (s *MemoryStore) get(id string) (*models.Secret, error) {
	secret, ok := s.secrets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *secret
	return &cp, nil
}

type memTx struct {
	store *MemoryStore
}

func (t *memTx) FetchSecretForUpdate(ctx context.Context, id string) (*models.Secret, error) {
	return t.store.get(id)
}

func (t *memTx) DeleteSecret(ctx context.Context, id string) error {
	delete(t.store.secrets, id)
	return nil
}
