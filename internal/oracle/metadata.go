package oracle

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"defiFrontier/internal/model"
)

// Metadata fills token names and symbols the subgraphs left blank from the
// token contracts.
type Metadata struct {
	caller Caller
	logger *zap.Logger

	mu    sync.RWMutex
	cache map[common.Address]model.Token
}

func NewMetadata(caller Caller, logger *zap.Logger) *Metadata {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Metadata{caller: caller, logger: logger, cache: make(map[common.Address]model.Token)}
}

// Complete returns tokens with empty names or symbols filled in where the
// contract answers. Lookup failures leave the token unchanged.
func (m *Metadata) Complete(ctx context.Context, tokens []model.Token) []model.Token {
	out := make([]model.Token, len(tokens))
	for i, token := range tokens {
		out[i] = token
		if token.Name != "" && token.Symbol != "" {
			continue
		}
		if !common.IsHexAddress(token.ID) {
			continue
		}
		meta, err := m.lookup(ctx, common.HexToAddress(token.ID))
		if err != nil {
			m.logger.Debug("token metadata lookup failed", zap.String("token", token.ID), zap.Error(err))
			continue
		}
		if out[i].Name == "" {
			out[i].Name = meta.Name
		}
		if out[i].Symbol == "" {
			out[i].Symbol = meta.Symbol
		}
	}
	return out
}

func (m *Metadata) lookup(ctx context.Context, token common.Address) (model.Token, error) {
	m.mu.RLock()
	meta, ok := m.cache[token]
	m.mu.RUnlock()
	if ok {
		return meta, nil
	}

	stringABI, err := erc20StringABIInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := erc20Bytes32ABIInstance()
	if err != nil {
		return meta, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	meta = model.Token{ID: token.Hex()}
	meta.Symbol, err = m.text(ctx, token, "symbol", stringABI, bytes32ABI)
	if err != nil {
		return meta, err
	}
	if name, err := m.text(ctx, token, "name", stringABI, bytes32ABI); err == nil {
		meta.Name = name
	}

	m.mu.Lock()
	m.cache[token] = meta
	m.mu.Unlock()
	return meta, nil
}

// text reads a string getter, falling back to its bytes32 variant.
func (m *Metadata) text(ctx context.Context, token common.Address, method string, stringABI, bytes32ABI abi.ABI) (string, error) {
	data, err := stringABI.Pack(method)
	if err != nil {
		return "", fmt.Errorf("pack %s: %w", method, err)
	}
	resp, err := m.caller.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return "", fmt.Errorf("call %s: %w", method, err)
	}

	if values, err := stringABI.Unpack(method, resp); err == nil {
		if s, ok := values[0].(string); ok {
			return s, nil
		}
	}
	values, err := bytes32ABI.Unpack(method, resp)
	if err != nil {
		return "", fmt.Errorf("unpack %s: %w", method, err)
	}
	if raw, ok := values[0].([32]byte); ok {
		return string(bytes.TrimRight(raw[:], "\x00")), nil
	}
	return "", fmt.Errorf("unsupported %s type %T", method, values[0])
}
