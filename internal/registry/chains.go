package registry

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	clierr "github.com/ggonzalez94/swapx/internal/errors"
)

var evmAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Chain is an EVM chain descriptor resolved from user input.
type Chain struct {
	Name    string
	Slug    string
	ChainID int64
}

var knownChains = []Chain{
	{Name: "Ethereum", Slug: "ethereum", ChainID: 1},
	{Name: "Optimism", Slug: "optimism", ChainID: 10},
	{Name: "BNB Chain", Slug: "bsc", ChainID: 56},
	{Name: "Polygon", Slug: "polygon", ChainID: 137},
	{Name: "Base", Slug: "base", ChainID: 8453},
	{Name: "Arbitrum", Slug: "arbitrum", ChainID: 42161},
	{Name: "Avalanche", Slug: "avalanche", ChainID: 43114},
	{Name: "Linea", Slug: "linea", ChainID: 59144},
	{Name: "Blast", Slug: "blast", ChainID: 81457},
	{Name: "Scroll", Slug: "scroll", ChainID: 534352},
}

var chainAliases = map[string]string{
	"eth":      "ethereum",
	"mainnet":  "ethereum",
	"op":       "optimism",
	"matic":    "polygon",
	"arb":      "arbitrum",
	"avax":     "avalanche",
	"binance":  "bsc",
	"bnb":      "bsc",
	"bnbchain": "bsc",
}

// ParseChain accepts a chain id, slug or common alias.
func ParseChain(input string) (Chain, error) {
	raw := strings.ToLower(strings.TrimSpace(input))
	if raw == "" {
		return Chain{}, clierr.New(clierr.CodeUsage, "chain is required (id or name, e.g. 8453 or base)")
	}
	if id, err := strconv.ParseInt(raw, 10, 64); err == nil {
		for _, c := range knownChains {
			if c.ChainID == id {
				return c, nil
			}
		}
		// Unknown ids are still usable; the aggregator decides support.
		return Chain{Name: fmt.Sprintf("eip155:%d", id), Slug: raw, ChainID: id}, nil
	}
	if alias, ok := chainAliases[raw]; ok {
		raw = alias
	}
	for _, c := range knownChains {
		if c.Slug == raw {
			return c, nil
		}
	}
	return Chain{}, clierr.New(clierr.CodeUsage, fmt.Sprintf("unknown chain %q", input))
}

// ParseTokenAddress validates an ERC-20 token address.
func ParseTokenAddress(input string) (string, error) {
	raw := strings.TrimSpace(input)
	if !evmAddressPattern.MatchString(raw) {
		return "", clierr.New(clierr.CodeUsage, fmt.Sprintf("invalid token address %q", input))
	}
	return raw, nil
}

// Canonical default EVM RPC endpoints by chain ID, used when neither the
// config file nor --rpc-url provides one.
var defaultRPCByChainID = map[int64]string{
	1:      "https://eth.llamarpc.com",
	10:     "https://mainnet.optimism.io",
	56:     "https://bsc-dataseed.binance.org",
	137:    "https://polygon-rpc.com",
	8453:   "https://mainnet.base.org",
	42161:  "https://arb1.arbitrum.io/rpc",
	43114:  "https://api.avax.network/ext/bc/C/rpc",
	59144:  "https://rpc.linea.build",
	81457:  "https://rpc.blast.io",
	534352: "https://rpc.scroll.io",
}

func DefaultRPCURL(chainID int64) (string, bool) {
	value, ok := defaultRPCByChainID[chainID]
	return value, ok
}

func ResolveRPCURL(override string, chainID int64) (string, error) {
	if strings.TrimSpace(override) != "" {
		return strings.TrimSpace(override), nil
	}
	if value, ok := DefaultRPCURL(chainID); ok {
		return value, nil
	}
	return "", fmt.Errorf("no default rpc configured for chain id %d; provide --rpc-url", chainID)
}

// Block explorer transaction URL prefixes by chain ID.
var explorerTxByChainID = map[int64]string{
	1:      "https://etherscan.io/tx/",
	10:     "https://optimistic.etherscan.io/tx/",
	56:     "https://bscscan.com/tx/",
	137:    "https://polygonscan.com/tx/",
	8453:   "https://basescan.org/tx/",
	42161:  "https://arbiscan.io/tx/",
	43114:  "https://snowtrace.io/tx/",
	59144:  "https://lineascan.build/tx/",
	81457:  "https://blastscan.io/tx/",
	534352: "https://scrollscan.com/tx/",
}

// ExplorerTxURL returns a browsable link for a transaction hash, or just the
// hash when the chain has no registered explorer.
func ExplorerTxURL(chainID int64, txHash string) string {
	prefix, ok := explorerTxByChainID[chainID]
	if !ok {
		return txHash
	}
	return prefix + txHash
}
