package model

import "fmt"

// PoolSnapshot is the state of a pool at a block.
type PoolSnapshot struct {
	ID               string  `json:"id"`
	PoolID           string  `json:"pool_id"`
	BlockNumber      uint64  `json:"block_number"`
	Timestamp        int64   `json:"timestamp"`
	TotalValueLocked float64 `json:"total_value_locked"`
	CumulativeReward float64 `json:"cumulative_reward"`
}

// TokenSnapshot is the USD price of a token at a block. A nil price means no quote.
type TokenSnapshot struct {
	ID          string   `json:"id"`
	TokenID     string   `json:"token_id"`
	BlockNumber uint64   `json:"block_number"`
	Timestamp   int64    `json:"timestamp"`
	Price       *float64 `json:"price"`
}

// SnapshotID builds the id of a pool or token snapshot at a block.
func SnapshotID(entityID string, block uint64) string {
	return fmt.Sprintf("%s_%d", entityID, block)
}
