package storage

import (
	"context"

	"defiFrontier/internal/model"
)

// Reader loads pools and their stored series.
type Reader interface {
	ListPoolsWithSnapshots(ctx context.Context) ([]model.Pool, error)
	PoolSnapshots(ctx context.Context, poolID string) ([]model.PoolSnapshot, error)
	TokenSnapshots(ctx context.Context, tokenID string) ([]model.TokenSnapshot, error)
}

// PoolWriter maintains the pool and token registry.
type PoolWriter interface {
	PoolExists(ctx context.Context, id string) (bool, error)
	InsertPool(ctx context.Context, pool model.Pool) error
	DeletePoolWithTokens(ctx context.Context, pool model.Pool) error
}

// SnapshotWriter stores pool and token snapshots.
type SnapshotWriter interface {
	PoolExists(ctx context.Context, id string) (bool, error)
	ListPools(ctx context.Context) ([]model.Pool, error)
	InsertPoolSnapshots(ctx context.Context, snapshots []model.PoolSnapshot) error
	InsertTokenSnapshots(ctx context.Context, snapshots []model.TokenSnapshot) error
	ExistingSnapshotIDs(ctx context.Context, ids []string) (map[string]struct{}, error)
	TopPoolTokens(ctx context.Context, block uint64, limit int) ([]string, error)
}
