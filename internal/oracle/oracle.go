package oracle

import (
	"context"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultAddress is the mainnet price lens quoting tokens in USDC.
const DefaultAddress = "0x83d95e0D5f402511dB06817Aff3f9eA88224B030"

const usdcDecimals = 6

// Caller executes read-only contract calls at a block.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Oracle prices tokens in USD at historical blocks.
type Oracle struct {
	caller      Caller
	address     common.Address
	cache       Cache
	concurrency int
	logger      *zap.Logger
}

func New(caller Caller, address string, cache Cache, logger *zap.Logger) (*Oracle, error) {
	if caller == nil {
		return nil, fmt.Errorf("caller is nil")
	}
	if address == "" {
		address = DefaultAddress
	}
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("invalid oracle address: %s", address)
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Oracle{
		caller:      caller,
		address:     common.HexToAddress(address),
		cache:       cache,
		concurrency: 8,
		logger:      logger,
	}, nil
}

// Prices returns one price per token at the block. Tokens the oracle cannot
// quote get a nil entry; only context cancellation is reported as an error.
func (o *Oracle) Prices(ctx context.Context, tokens []string, block uint64) ([]*float64, error) {
	out := make([]*float64, len(tokens))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, token := range tokens {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			price, err := o.price(gctx, token, block)
			if err != nil {
				o.logger.Debug("price lookup failed", zap.String("token", token), zap.Uint64("block", block), zap.Error(err))
				return nil
			}
			out[i] = price
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Oracle) price(ctx context.Context, token string, block uint64) (*float64, error) {
	if !common.IsHexAddress(token) {
		return nil, fmt.Errorf("invalid token address")
	}
	key := cacheKey(common.HexToAddress(token).Hex(), block)
	if price, ok := o.cache.Get(ctx, key); ok {
		return &price, nil
	}

	parsed, err := lensABIInstance()
	if err != nil {
		return nil, fmt.Errorf("parse oracle abi: %w", err)
	}
	data, err := parsed.Pack(priceMethod, common.HexToAddress(token))
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", priceMethod, err)
	}
	msg := ethereum.CallMsg{To: &o.address, Data: data}
	resp, err := o.caller.CallContract(ctx, msg, new(big.Int).SetUint64(block))
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", priceMethod, err)
	}
	values, err := parsed.Unpack(priceMethod, resp)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", priceMethod, err)
	}
	raw, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unsupported price type %T", values[0])
	}
	if raw.Sign() <= 0 {
		return nil, fmt.Errorf("no quote")
	}

	price, _ := new(big.Float).Quo(new(big.Float).SetInt(raw), big.NewFloat(math.Pow10(usdcDecimals))).Float64()
	o.cache.Set(ctx, key, price)
	return &price, nil
}
