package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/org/secretshare/pkg/models"
)

func testSecret(id string, expiresAt time.Time) *models.Secret {
	return &models.Secret{
		ID:               id,
		EncryptedContent: []byte{0x01, 0x02},
		ExpiresAt:        expiresAt,
		CreatedAt:        expiresAt.Add(-time.Hour),
	}
}

func TestMemoryStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if _, err := s.GetSecret(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	sec := testSecret("a", time.Now().Add(time.Hour))
	if err := s.CreateSecret(ctx, sec); err != nil {
		t.Fatalf("CreateSecret failed: %v", err)
	}

	got, err := s.GetSecret(ctx, "a")
	if err != nil {
		t.Fatalf("GetSecret failed: %v", err)
	}
	if got.ID != "a" {
		t.Errorf("got id %q", got.ID)
	}

	// Delete is idempotent.
	if err := s.DeleteSecret(ctx, "a"); err != nil {
		t.Fatalf("DeleteSecret failed: %v", err)
	}
	if err := s.DeleteSecret(ctx, "a"); err != nil {
		t.Fatalf("second DeleteSecret failed: %v", err)
	}
	if _, err := s.GetSecret(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestMemoryStoreDeleteExpired(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	s.CreateSecret(ctx, testSecret("live", now.Add(time.Hour)))
	s.CreateSecret(ctx, testSecret("dead1", now.Add(-time.Minute)))
	s.CreateSecret(ctx, testSecret("dead2", now.Add(-time.Hour)))

	n, err := s.DeleteExpired(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}
	if _, err := s.GetSecret(ctx, "live"); err != nil {
		t.Errorf("live secret should survive: %v", err)
	}
}

func TestMemoryStoreTxRollback(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	s.CreateSecret(ctx, testSecret("a", time.Now().Add(time.Hour)))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx Tx) error {
		if _, err := tx.FetchSecretForUpdate(ctx, "a"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}
	if _, err := s.GetSecret(ctx, "a"); err != nil {
		t.Errorf("record should survive a rolled-back transaction: %v", err)
	}
}

func TestMemoryStoreTxExclusive(t *testing.T) {
	// N concurrent delete-in-tx attempts on the same id: exactly one finds
	// the record, the rest observe ErrNotFound.
	ctx := context.Background()
	s := NewMemoryStore()
	s.CreateSecret(ctx, testSecret("a", time.Now().Add(time.Hour)))

	const workers = 8
	var wins, misses int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.InTx(ctx, func(tx Tx) error {
				if _, err := tx.FetchSecretForUpdate(ctx, "a"); err != nil {
					return err
				}
				return tx.DeleteSecret(ctx, "a")
			})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if errors.Is(err, ErrNotFound) {
				misses++
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("expected exactly 1 winner, got %d", wins)
	}
	if misses != workers-1 {
		t.Errorf("expected %d ErrNotFound, got %d", workers-1, misses)
	}
}
