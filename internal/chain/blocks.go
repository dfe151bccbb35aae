package chain

import (
	"context"
	"errors"
	"fmt"
)

// ErrBlockNotFound is returned when no block lies within tolerance of a timestamp.
var ErrBlockNotFound = errors.New("block not found")

// DefaultTolerance is the accepted distance in seconds between a block and a target time.
const DefaultTolerance = 600

const secondsPerDay = 86400

// Block is a block number with its timestamp.
type Block struct {
	Number    uint64
	Timestamp uint64
}

type timestampFunc func(ctx context.Context, number uint64) (uint64, error)

// BlockAtTimestamp returns a block whose timestamp is within tolerance seconds
// of target, searching blocks up to the current head.
func (c *Client) BlockAtTimestamp(ctx context.Context, target, tolerance uint64) (Block, error) {
	head, err := c.LatestBlockNumber(ctx)
	if err != nil {
		return Block{}, fmt.Errorf("get latest block: %w", err)
	}
	return searchBlock(ctx, head, target, tolerance, c.BlockTimestamp)
}

// DailyBlocks returns, oldest first, the blocks closest to UTC midnight for the
// given number of days ending with the day of the head block.
func (c *Client) DailyBlocks(ctx context.Context, head uint64, days int) ([]Block, error) {
	headTs, err := c.BlockTimestamp(ctx, head)
	if err != nil {
		return nil, fmt.Errorf("head timestamp: %w", err)
	}
	return dailyBlocks(ctx, head, headTs, days, DefaultTolerance, c.BlockTimestamp)
}

func dailyBlocks(ctx context.Context, head, headTs uint64, days int, tolerance uint64, ts timestampFunc) ([]Block, error) {
	midnight := headTs - headTs%secondsPerDay
	out := make([]Block, 0, days)
	for i := days - 1; i >= 0; i-- {
		offset := uint64(i) * secondsPerDay
		if offset > midnight {
			continue
		}
		block, err := searchBlock(ctx, head, midnight-offset, tolerance, ts)
		if err != nil {
			return nil, fmt.Errorf("block for day %d: %w", i, err)
		}
		out = append(out, block)
	}
	return out, nil
}

func searchBlock(ctx context.Context, head, target, tolerance uint64, ts timestampFunc) (Block, error) {
	lo, hi := uint64(0), head
	for lo <= hi {
		if err := ctx.Err(); err != nil {
			return Block{}, err
		}
		mid := lo + (hi-lo)/2
		t, err := ts(ctx, mid)
		if err != nil {
			return Block{}, fmt.Errorf("block timestamp %d: %w", mid, err)
		}
		if absDiff(t, target) <= tolerance {
			return Block{Number: mid, Timestamp: t}, nil
		}
		if t < target {
			lo = mid + 1
		} else {
			if mid == 0 {
				break
			}
			hi = mid - 1
		}
	}
	return Block{}, fmt.Errorf("timestamp %d: %w", target, ErrBlockNotFound)
}

func absDiff(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}
