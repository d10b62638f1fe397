package main

import (
	"context"
	"time"

	"github.com/org/secretshare/internal/api"
	"github.com/org/secretshare/internal/storage"
	"github.com/rs/zerolog/log"
)

// runExpirySweeper periodically purges secrets past their expiry. Expired
// rows are already invisible to reveal (the consumption path deletes them on
// discovery); the sweeper just stops ciphertext of never-claimed secrets
// lingering in the database.
func runExpirySweeper(ctx context.Context, store storage.Store, interval time.Duration) {
	if interval <= 0 {
		log.Error().Dur("interval", interval).Msg("expiry sweeper disabled: interval must be positive")
		return
	}

	// Run once at startup so a long-lived process does not wait a full tick
	// before purging.
	sweepOnce(ctx, store)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepOnce(ctx, store)
		}
	}
}

func sweepOnce(ctx context.Context, store storage.Store) {
	sweepCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	n, err := store.DeleteExpired(sweepCtx, time.Now())
	if err != nil {
		log.Error().Err(err).Msg("expiry sweep failed")
		return
	}
	if n > 0 {
		api.ObserveExpiredSecrets(n)
		log.Info().Int64("deleted", n).Msg("purged expired secrets")
	}
}
