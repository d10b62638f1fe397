package main

import (
	"context"
	"testing"
	"time"

	"github.com/org/secretshare/internal/storage"
	"github.com/org/secretshare/pkg/models"
)

func TestSweepOnceRemovesOnlyExpired(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	now := time.Now()

	store.CreateSecret(ctx, &models.Secret{ID: "live", ExpiresAt: now.Add(time.Hour), CreatedAt: now})
	store.CreateSecret(ctx, &models.Secret{ID: "dead", ExpiresAt: now.Add(-time.Hour), CreatedAt: now.Add(-2 * time.Hour)})

	sweepOnce(ctx, store)

	if _, err := store.GetSecret(ctx, "live"); err != nil {
		t.Errorf("live secret should survive the sweep: %v", err)
	}
	if _, err := store.GetSecret(ctx, "dead"); err == nil {
		t.Error("expired secret should be purged")
	}
}

func TestSweeperStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runExpirySweeper(ctx, storage.NewMemoryStore(), time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after context cancellation")
	}
}
