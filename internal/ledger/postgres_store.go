package ledger

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists records in a PostgreSQL table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS minted_tokens (
    token_id TEXT PRIMARY KEY,
    owner TEXT NOT NULL,
    asset_url TEXT NOT NULL,
    tx_hash TEXT NOT NULL DEFAULT '',
    minted_at TIMESTAMPTZ NOT NULL
);
`

// NewPostgresStore connects to Postgres using the DSN and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Get(ctx context.Context, tokenID string) (*Record, error) {
	row := p.pool.QueryRow(ctx, `
SELECT token_id, owner, asset_url, tx_hash, minted_at
FROM minted_tokens
WHERE token_id = $1
`, tokenID)

	var rec Record
	if err := row.Scan(&rec.TokenID, &rec.Owner, &rec.AssetURL, &rec.TxHash, &rec.MintedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (p *PostgresStore) Save(ctx context.Context, record Record) error {
	if record.TokenID == "" {
		return ErrMissingTokenID
	}
	_, err := p.pool.Exec(ctx, `
INSERT INTO minted_tokens (token_id, owner, asset_url, tx_hash, minted_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (token_id) DO UPDATE
SET owner = EXCLUDED.owner,
    asset_url = EXCLUDED.asset_url,
    tx_hash = EXCLUDED.tx_hash,
    minted_at = EXCLUDED.minted_at
`, record.TokenID, record.Owner, record.AssetURL, record.TxHash, record.MintedAt)
	return err
}

func (p *PostgresStore) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := p.pool.Query(ctx, `
SELECT token_id, owner, asset_url, tx_hash, minted_at
FROM minted_tokens
ORDER BY minted_at DESC, token_id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (Record, error) {
		var rec Record
		err := row.Scan(&rec.TokenID, &rec.Owner, &rec.AssetURL, &rec.TxHash, &rec.MintedAt)
		return rec, err
	})
}
