package model

// Pool is a protocol pool, market or vault tracked by a subgraph.
type Pool struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Protocol string  `json:"protocol"`
	Tokens   []Token `json:"tokens"`
}

// TokenIDs returns the ids of the pool's input tokens in order.
func (p Pool) TokenIDs() []string {
	ids := make([]string, 0, len(p.Tokens))
	for _, t := range p.Tokens {
		ids = append(ids, t.ID)
	}
	return ids
}
