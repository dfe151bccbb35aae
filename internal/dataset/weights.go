package dataset

import (
	"context"
	"fmt"
	"sync"

	"defiFrontier/internal/subgraph"
)

// WeightSource returns the token weights of a multi-token pool.
type WeightSource interface {
	TokenWeights(ctx context.Context, protocol, poolID string) ([]float64, error)
}

// SubgraphWeights reads token weights from the protocol's subgraph.
type SubgraphWeights struct {
	client   *subgraph.Client
	registry *subgraph.Registry

	mu      sync.Mutex
	sources map[string]*subgraph.Source
}

func NewSubgraphWeights(client *subgraph.Client, registry *subgraph.Registry) *SubgraphWeights {
	return &SubgraphWeights{client: client, registry: registry, sources: make(map[string]*subgraph.Source)}
}

func (w *SubgraphWeights) TokenWeights(ctx context.Context, protocol, poolID string) ([]float64, error) {
	src, err := w.source(protocol)
	if err != nil {
		return nil, err
	}
	return src.TokenWeights(ctx, poolID)
}

func (w *SubgraphWeights) source(protocol string) (*subgraph.Source, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if src, ok := w.sources[protocol]; ok {
		return src, nil
	}
	sg, ok := w.registry.ByProtocol(protocol)
	if !ok {
		return nil, fmt.Errorf("no subgraph for protocol %q", protocol)
	}
	src, err := w.client.Source(w.registry, sg)
	if err != nil {
		return nil, err
	}
	w.sources[protocol] = src
	return src, nil
}
