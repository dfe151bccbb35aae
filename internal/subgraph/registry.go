package subgraph

import "strings"

// DefaultBaseURL hosts the Messari subgraph deployments.
const DefaultBaseURL = "https://api.thegraph.com/subgraphs/name/messari/"

// Schema types of the Messari standard schemas.
const (
	TypeDEXAMM          = "DEX AMM"
	TypeLending         = "Lending Protocol"
	TypeCDP             = "CDP"
	TypeYieldAggregator = "Yield Aggregator"
)

// Subgraph is one protocol deployment.
type Subgraph struct {
	Protocol   string
	SchemaType string
	Endpoint   string
}

var deployments = []Subgraph{
	{"Balancer v2", TypeDEXAMM, "balancer-v2-ethereum"},
	{"Bancor v3", TypeDEXAMM, "bancor-v3-ethereum"},
	{"Curve", TypeDEXAMM, "curve-finance-ethereum"},
	{"Saddle Finance", TypeDEXAMM, "saddle-finance-ethereum"},
	{"SushiSwap", TypeDEXAMM, "sushiswap-ethereum"},
	{"Uniswap v2", TypeDEXAMM, "uniswap-v2-ethereum"},
	{"Uniswap v3", TypeDEXAMM, "uniswap-v3-ethereum"},

	{"Aave v2", TypeLending, "aave-v2-ethereum"},
	{"Aave ARC", TypeLending, "aave-arc-ethereum"},
	{"Aave RWA", TypeLending, "aave-rwa-ethereum"},
	{"Aave AMM", TypeLending, "aave-amm-ethereum"},
	{"Compound", TypeLending, "compound-ethereum"},
	{"CREAM Finance", TypeLending, "cream-finance-ethereum"},
	{"Iron Bank", TypeLending, "iron-bank-ethereum"},
	{"Maple Finance", TypeLending, "maple-finance-ethereum"},
	{"Rari Fuse", TypeLending, "rari-fuse-ethereum"},

	{"Abracadabra", TypeCDP, "abracadabra-money-ethereum"},
	{"Inverse Finance", TypeCDP, "inverse-finance-ethereum"},
	{"Liquity", TypeCDP, "liquity-ethereum"},
	{"MakerDAO", TypeCDP, "makerdao-ethereum"},

	{"Arrakis Finance", TypeYieldAggregator, "arrakis-finance-ethereum"},
	{"BadgerDAO", TypeYieldAggregator, "badgerdao-ethereum"},
	{"Convex Finance", TypeYieldAggregator, "convex-finance-ethereum"},
	{"Gamma Strategy", TypeYieldAggregator, "gamma-ethereum"},
	{"Rari Vaults", TypeYieldAggregator, "rari-vaults-ethereum"},
	{"StakeDAO", TypeYieldAggregator, "stake-dao-ethereum"},
	{"Tokemak", TypeYieldAggregator, "tokemak-ethereum"},
	{"Vesper Finance", TypeYieldAggregator, "vesper-ethereum"},
	{"Yearn v2", TypeYieldAggregator, "yearn-v2-ethereum"},
}

// Registry lists the tracked subgraphs and resolves their URLs.
type Registry struct {
	baseURL   string
	subgraphs []Subgraph
}

// NewRegistry returns the standard deployments served from baseURL.
// An empty baseURL selects DefaultBaseURL. A non-empty protocols list keeps
// only the named protocols.
func NewRegistry(baseURL string, protocols []string) *Registry {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	r := &Registry{baseURL: baseURL}
	keep := make(map[string]bool, len(protocols))
	for _, p := range protocols {
		keep[p] = true
	}
	for _, sg := range deployments {
		if len(keep) > 0 && !keep[sg.Protocol] {
			continue
		}
		r.subgraphs = append(r.subgraphs, sg)
	}
	return r
}

// Subgraphs returns the registered deployments.
func (r *Registry) Subgraphs() []Subgraph {
	return append([]Subgraph(nil), r.subgraphs...)
}

// ByProtocol looks up a deployment by protocol name.
func (r *Registry) ByProtocol(protocol string) (Subgraph, bool) {
	for _, sg := range r.subgraphs {
		if sg.Protocol == protocol {
			return sg, true
		}
	}
	return Subgraph{}, false
}

// URL returns the query URL of a deployment.
func (r *Registry) URL(sg Subgraph) string {
	return r.baseURL + sg.Endpoint
}
