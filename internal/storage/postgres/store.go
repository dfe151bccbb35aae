package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"defiFrontier/internal/model"
)

// Store provides Postgres persistence for pools, tokens and snapshots.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS pools (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	protocol TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS tokens (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	symbol TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS pool_tokens (
	pool_id TEXT NOT NULL REFERENCES pools(id) ON DELETE CASCADE,
	token_id TEXT NOT NULL REFERENCES tokens(id) ON DELETE CASCADE,
	position INT NOT NULL,
	PRIMARY KEY (pool_id, token_id)
);
CREATE TABLE IF NOT EXISTS pool_snapshots (
	id TEXT PRIMARY KEY,
	pool_id TEXT NOT NULL REFERENCES pools(id) ON DELETE CASCADE,
	block_number BIGINT NOT NULL,
	timestamp BIGINT NOT NULL,
	total_value_locked DOUBLE PRECISION NOT NULL,
	cumulative_reward DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS pool_snapshots_block_idx ON pool_snapshots (block_number);
CREATE TABLE IF NOT EXISTS token_snapshots (
	id TEXT PRIMARY KEY,
	token_id TEXT NOT NULL,
	block_number BIGINT NOT NULL,
	timestamp BIGINT NOT NULL,
	price DOUBLE PRECISION
);
CREATE INDEX IF NOT EXISTS token_snapshots_token_idx ON token_snapshots (token_id);
CREATE TABLE IF NOT EXISTS exporter_state (
	name TEXT PRIMARY KEY,
	last_processed_block BIGINT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates missing tables. Existing tables are left untouched.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// PoolExists reports whether a pool is stored.
func (s *Store) PoolExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	row := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM pools WHERE id=$1)`, id)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// InsertPool stores a pool together with its tokens and links. Existing rows are kept.
func (s *Store) InsertPool(ctx context.Context, pool model.Pool) error {
	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO pools (id, name, protocol) VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`, pool.ID, pool.Name, pool.Protocol)
	for i, token := range pool.Tokens {
		batch.Queue(`
			INSERT INTO tokens (id, name, symbol) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING
		`, token.ID, token.Name, token.Symbol)
		batch.Queue(`
			INSERT INTO pool_tokens (pool_id, token_id, position) VALUES ($1, $2, $3)
			ON CONFLICT (pool_id, token_id) DO NOTHING
		`, pool.ID, token.ID, i)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// DeletePoolWithTokens removes a pool, its snapshots and the tokens no other pool uses.
func (s *Store) DeletePoolWithTokens(ctx context.Context, pool model.Pool) error {
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM pools WHERE id=$1`, pool.ID)
	batch.Queue(`
		DELETE FROM tokens
		WHERE id = ANY($1)
		AND NOT EXISTS (SELECT 1 FROM pool_tokens pt WHERE pt.token_id = tokens.id)
	`, pool.TokenIDs())

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ListPools returns all pools with their tokens.
func (s *Store) ListPools(ctx context.Context) ([]model.Pool, error) {
	return s.queryPools(ctx, `SELECT id, name, protocol FROM pools ORDER BY id`)
}

// ListPoolsWithSnapshots returns pools that have at least one snapshot.
func (s *Store) ListPoolsWithSnapshots(ctx context.Context) ([]model.Pool, error) {
	return s.queryPools(ctx, `
		SELECT p.id, p.name, p.protocol FROM pools p
		WHERE EXISTS (SELECT 1 FROM pool_snapshots ps WHERE ps.pool_id = p.id)
		ORDER BY p.id
	`)
}

func (s *Store) queryPools(ctx context.Context, query string) ([]model.Pool, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	pools, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Pool, error) {
		var p model.Pool
		err := row.Scan(&p.ID, &p.Name, &p.Protocol)
		return p, err
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]int, len(pools))
	for i, p := range pools {
		byID[p.ID] = i
	}

	rows, err = s.pool.Query(ctx, `
		SELECT pt.pool_id, t.id, t.name, t.symbol
		FROM pool_tokens pt JOIN tokens t ON t.id = pt.token_id
		ORDER BY pt.pool_id, pt.position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var poolID string
		var t model.Token
		if err := rows.Scan(&poolID, &t.ID, &t.Name, &t.Symbol); err != nil {
			return nil, err
		}
		if i, ok := byID[poolID]; ok {
			pools[i].Tokens = append(pools[i].Tokens, t)
		}
	}
	return pools, rows.Err()
}

// InsertPoolSnapshots stores snapshots, skipping ids that already exist.
func (s *Store) InsertPoolSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO pool_snapshots (
				id, pool_id, block_number, timestamp, total_value_locked, cumulative_reward
			) VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`,
			snap.ID,
			snap.PoolID,
			int64(snap.BlockNumber),
			snap.Timestamp,
			snap.TotalValueLocked,
			snap.CumulativeReward,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// InsertTokenSnapshots stores token prices, skipping ids that already exist.
func (s *Store) InsertTokenSnapshots(ctx context.Context, snapshots []model.TokenSnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO token_snapshots (id, token_id, block_number, timestamp, price)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`,
			snap.ID,
			snap.TokenID,
			int64(snap.BlockNumber),
			snap.Timestamp,
			snap.Price,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range snapshots {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// ExistingSnapshotIDs returns which of the given token snapshot ids are stored.
func (s *Store) ExistingSnapshotIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT id FROM token_snapshots WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	found, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	for _, id := range found {
		out[id] = struct{}{}
	}
	return out, nil
}

// PoolSnapshots returns a pool's snapshots ordered by block.
func (s *Store) PoolSnapshots(ctx context.Context, poolID string) ([]model.PoolSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, pool_id, block_number, timestamp, total_value_locked, cumulative_reward
		FROM pool_snapshots WHERE pool_id=$1 ORDER BY block_number
	`, poolID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.PoolSnapshot, error) {
		var snap model.PoolSnapshot
		var block int64
		err := row.Scan(&snap.ID, &snap.PoolID, &block, &snap.Timestamp, &snap.TotalValueLocked, &snap.CumulativeReward)
		snap.BlockNumber = uint64(block)
		return snap, err
	})
}

// TokenSnapshots returns a token's price snapshots ordered by block.
func (s *Store) TokenSnapshots(ctx context.Context, tokenID string) ([]model.TokenSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, token_id, block_number, timestamp, price
		FROM token_snapshots WHERE token_id=$1 ORDER BY block_number
	`, tokenID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.TokenSnapshot, error) {
		var snap model.TokenSnapshot
		var block int64
		err := row.Scan(&snap.ID, &snap.TokenID, &block, &snap.Timestamp, &snap.Price)
		snap.BlockNumber = uint64(block)
		return snap, err
	})
}

// TopPoolTokens returns the distinct token ids of the limit pools with the
// highest TVL at a block.
func (s *Store) TopPoolTokens(ctx context.Context, block uint64, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT pt.token_id
		FROM (
			SELECT pool_id FROM pool_snapshots
			WHERE block_number=$1
			ORDER BY total_value_locked DESC
			LIMIT $2
		) top
		JOIN pool_tokens pt ON pt.pool_id = top.pool_id
		ORDER BY pt.token_id
	`, int64(block), limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// LoadState returns the last processed block for a name.
func (s *Store) LoadState(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, fmt.Errorf("state name required")
	}
	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM exporter_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return uint64(block), true, nil
}

// SaveState upserts the last processed block for a name.
func (s *Store) SaveState(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO exporter_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	return err
}
