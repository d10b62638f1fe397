package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/org/secretshare/pkg/models"
)

// PostgresStore is a Store backed by PostgreSQL. Row-lock exclusivity for the
// consumption path is delegated to SELECT ... FOR UPDATE so that multiple
// process instances behind a load balancer stay correct.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore opens a pgxpool connection and returns a ready store.
func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parsing postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}

func (p *PostgresStore) CreateSecret(ctx context.Context, secret *models.Secret) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO secrets (id, encrypted_content, requires_password, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		secret.ID, secret.EncryptedContent, secret.RequiresPassword, secret.ExpiresAt, secret.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting secret: %w", err)
	}
	return nil
}

func (p *PostgresStore) GetSecret(ctx context.Context, id string) (*models.Secret, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT id, encrypted_content, requires_password, expires_at, created_at
		 FROM secrets WHERE id = $1`,
		id,
	)
	return scanSecret(row)
}

func (p *PostgresStore) DeleteSecret(ctx context.Context, id string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM secrets WHERE id = $1`, id)
	return err
}

func (p *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := p.pool.Exec(ctx, `DELETE FROM secrets WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired secrets: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresStore) CountSecrets(ctx context.Context) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx, `SELECT COUNT(*) FROM secrets`).Scan(&count)
	return count, err
}

// InTx runs fn inside a database transaction.
func (p *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&pgxTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) FetchSecretForUpdate(ctx context.Context, id string) (*models.Secret, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT id, encrypted_content, requires_password, expires_at, created_at
		 FROM secrets WHERE id = $1 FOR UPDATE`,
		id,
	)
	return scanSecret(row)
}

func (t *pgxTx) DeleteSecret(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM secrets WHERE id = $1`, id)
	return err
}

func scanSecret(row pgx.Row) (*models.Secret, error) {
	var s models.Secret
	err := row.Scan(&s.ID, &s.EncryptedContent, &s.RequiresPassword, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}
