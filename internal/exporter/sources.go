package exporter

import (
	"context"

	"defiFrontier/internal/model"
	"defiFrontier/internal/subgraph"
)

// PoolSource lists pools of one protocol and samples their state at blocks.
type PoolSource interface {
	Pools(ctx context.Context) ([]model.Pool, error)
	Snapshots(ctx context.Context, poolID string, blocks []uint64) ([]model.PoolSnapshot, error)
}

// Sources holds one PoolSource per protocol in registration order.
type Sources struct {
	protocols  []string
	byProtocol map[string]PoolSource
}

func NewSources() *Sources {
	return &Sources{byProtocol: make(map[string]PoolSource)}
}

// Add registers src for protocol, replacing an earlier registration.
func (s *Sources) Add(protocol string, src PoolSource) {
	if _, ok := s.byProtocol[protocol]; !ok {
		s.protocols = append(s.protocols, protocol)
	}
	s.byProtocol[protocol] = src
}

func (s *Sources) Protocols() []string {
	return append([]string(nil), s.protocols...)
}

func (s *Sources) Get(protocol string) (PoolSource, bool) {
	src, ok := s.byProtocol[protocol]
	return src, ok
}

// SubgraphSources binds every registry deployment to the client.
func SubgraphSources(client *subgraph.Client, registry *subgraph.Registry) (*Sources, error) {
	out := NewSources()
	for _, sg := range registry.Subgraphs() {
		src, err := client.Source(registry, sg)
		if err != nil {
			return nil, err
		}
		out.Add(sg.Protocol, src)
	}
	return out, nil
}
