package oracle

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
)

type fakeCaller struct {
	mu     sync.Mutex
	prices map[common.Address]int64
	calls  int
	blocks []uint64
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.blocks = append(f.blocks, block.Uint64())
	f.mu.Unlock()

	parsed, err := lensABIInstance()
	if err != nil {
		return nil, err
	}
	args, err := parsed.Methods[priceMethod].Inputs.Unpack(msg.Data[4:])
	if err != nil {
		return nil, err
	}
	token := args[0].(common.Address)
	raw, ok := f.prices[token]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return parsed.Methods[priceMethod].Outputs.Pack(big.NewInt(raw))
}

const (
	usdc = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	weth = "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2"
	junk = "0x0000000000000000000000000000000000000001"
)

func TestPrices(t *testing.T) {
	caller := &fakeCaller{prices: map[common.Address]int64{
		common.HexToAddress(usdc): 1_000_000,
		common.HexToAddress(weth): 1_850_250_000,
		common.HexToAddress(junk): 0,
	}}
	o, err := New(caller, "", nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prices, err := o.Prices(context.Background(), []string{usdc, weth, junk, "not-an-address", "0x0000000000000000000000000000000000000002"}, 17_000_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(prices) != 5 {
		t.Fatalf("expected 5 prices, got %d", len(prices))
	}
	if prices[0] == nil || *prices[0] != 1 {
		t.Fatalf("unexpected usdc price %v", prices[0])
	}
	if prices[1] == nil || *prices[1] != 1850.25 {
		t.Fatalf("unexpected weth price %v", prices[1])
	}
	for i := 2; i < 5; i++ {
		if prices[i] != nil {
			t.Fatalf("expected no quote at %d, got %v", i, *prices[i])
		}
	}
	for _, b := range caller.blocks {
		if b != 17_000_000 {
			t.Fatalf("call at unexpected block %d", b)
		}
	}
}

func TestPricesUsesCache(t *testing.T) {
	caller := &fakeCaller{prices: map[common.Address]int64{common.HexToAddress(weth): 2_000_000_000}}
	o, err := New(caller, DefaultAddress, NewMemoryCache(), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := o.Prices(context.Background(), []string{weth}, 1); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if caller.calls != 1 {
		t.Fatalf("expected one contract call, got %d", caller.calls)
	}
}

func TestNewRejectsBadAddress(t *testing.T) {
	if _, err := New(&fakeCaller{}, "0x123", nil, nil); err == nil {
		t.Fatalf("expected error for invalid oracle address")
	}
	if _, err := New(nil, "", nil, nil); err == nil {
		t.Fatalf("expected error for nil caller")
	}
}
